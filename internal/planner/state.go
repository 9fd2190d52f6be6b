package planner

import (
	"sort"

	"ai-day-planner/internal/environment"
	"ai-day-planner/internal/events"
	"ai-day-planner/internal/location"
	"ai-day-planner/internal/places"
)

// BlockState tracks where a single time block is in its lifecycle.
type BlockState string

const (
	BlockEmpty    BlockState = "empty"
	BlockLoading  BlockState = "loading"
	BlockComplete BlockState = "complete"
	BlockError    BlockState = "error"
)

// RunState is the lifecycle of a whole generation run.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunStopped   RunState = "stopped"
)

// BlockResult is the per-block slice of PlanState exposed to clients.
type BlockResult struct {
	Block      TimeBlock  `json:"block"`
	State      BlockState `json:"state"`
	Activities []Activity `json:"activities,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// PlanState is a snapshot of the whole plan, safe to serialize. The
// orchestrator owns the live copy; callers only ever see value copies.
type PlanState struct {
	Location    location.Location    `json:"location"`
	Environment environment.Snapshot `json:"environment"`
	Clothing    string               `json:"clothing,omitempty"`
	Preferences Preferences          `json:"preferences"`
	Blocks      []BlockResult        `json:"blocks"`
	Venues      []places.Venue       `json:"venues,omitempty"`
	Events      []events.Event       `json:"events,omitempty"`
	Run         RunState             `json:"run"`
}

// AllActivities flattens completed blocks into one time-ordered list.
func (s PlanState) AllActivities() []Activity {
	blocks := append([]BlockResult(nil), s.Blocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Block.ID < blocks[j].Block.ID })
	var out []Activity
	for _, b := range blocks {
		if b.State == BlockComplete {
			out = append(out, b.Activities...)
		}
	}
	return out
}

func (s PlanState) blockIndex(blockID int) int {
	for i, b := range s.Blocks {
		if b.Block.ID == blockID {
			return i
		}
	}
	return -1
}
