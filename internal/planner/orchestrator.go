package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"ai-day-planner/internal/environment"
	"ai-day-planner/internal/events"
	"ai-day-planner/internal/llm"
	"ai-day-planner/internal/location"
	"ai-day-planner/internal/places"
)

var (
	// ErrGenerationInProgress is returned by flows that refuse to run
	// while a generation is active. Callers stop the active run first.
	ErrGenerationInProgress = errors.New("generation already in progress")
	// ErrNoSuchBlock is returned for a block ID outside the current plan.
	ErrNoSuchBlock = errors.New("no such block")
)

// Notifier receives short human-readable progress messages.
type Notifier func(message string)

type generationRun struct {
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// Orchestrator owns the plan state and coordinates per-block generation
// through the model gateway. All state access goes through its mutex;
// callers only ever receive value copies.
type Orchestrator struct {
	gw     *llm.Gateway
	notify Notifier
	status llm.StatusSink

	mu    sync.Mutex
	state PlanState
	run   *generationRun
}

type Option func(*Orchestrator)

// WithNotifier sets the sink for progress messages.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notify = n }
}

// WithStatusSink sets the sink for per-block model status lines.
func WithStatusSink(s llm.StatusSink) Option {
	return func(o *Orchestrator) { o.status = s }
}

// NewOrchestrator builds an orchestrator around a gateway. The gateway may
// be nil, in which case every block falls back to deterministic suggestions.
func NewOrchestrator(gw *llm.Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:    gw,
		state: PlanState{Preferences: DefaultPreferences(), Run: RunIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a copy of the current plan state.
func (o *Orchestrator) State() PlanState {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.state
	st.Blocks = append([]BlockResult(nil), o.state.Blocks...)
	return st
}

// IsGenerating reports whether a run is currently active.
func (o *Orchestrator) IsGenerating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Run == RunRunning
}

// SetLocation records the resolved location for prompt building.
func (o *Orchestrator) SetLocation(loc location.Location) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Location = loc
}

// SetEnvironment records the environment snapshot and derives clothing
// advice from it.
func (o *Orchestrator) SetEnvironment(snap environment.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Environment = snap
	o.state.Clothing = environment.DeriveClothing(snap)
}

// SetVenues records nearby venues for prompt enrichment.
func (o *Orchestrator) SetVenues(vs []places.Venue) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Venues = vs
}

// SetEvents records local events for prompt enrichment.
func (o *Orchestrator) SetEvents(evs []events.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Events = evs
}

// ApplyPreferences merges a preference delta into the current preferences
// and returns the result.
func (o *Orchestrator) ApplyPreferences(delta Preferences) Preferences {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Preferences = o.state.Preferences.Merge(delta)
	return o.state.Preferences
}

// Generate runs one full plan generation across the given blocks, fanning
// out one model call per block and blocking until every block settles. At
// most one run is active: starting a new one cancels any run still in
// flight. A nil or empty block list means the default six blocks.
//
// Blocks generating in parallel only see the activities known when their
// prompt was built, so repetition avoidance across sibling blocks is best
// effort.
func (o *Orchestrator) Generate(ctx context.Context, blocks []TimeBlock) error {
	if len(blocks) == 0 {
		blocks = DefaultBlocks()
	}
	run := o.beginRun(ctx, blocks)
	defer run.cancel()

	o.mu.Lock()
	city := o.state.Location.City
	o.mu.Unlock()
	o.notifyf("Planning your day in %s...", city)

	var wg sync.WaitGroup
	for _, b := range blocks {
		wg.Add(1)
		go func(b TimeBlock) {
			defer wg.Done()
			o.generateBlock(run, b)
		}(b)
	}
	wg.Wait()

	if o.finishRun(run) {
		o.notifyf("Your plan for %s is ready.", city)
	}
	return nil
}

// RegenerateBlock re-runs generation for a single block, leaving the rest
// of the plan untouched.
func (o *Orchestrator) RegenerateBlock(ctx context.Context, blockID int) error {
	o.mu.Lock()
	if o.state.Run == RunRunning {
		o.mu.Unlock()
		return ErrGenerationInProgress
	}
	idx := o.state.blockIndex(blockID)
	if idx < 0 {
		o.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchBlock, blockID)
	}
	block := o.state.Blocks[idx].Block
	runCtx, cancel := context.WithCancel(ctx)
	run := &generationRun{ctx: runCtx, cancel: cancel}
	o.run = run
	o.state.Run = RunRunning
	o.state.Blocks[idx].State = BlockLoading
	o.state.Blocks[idx].Message = ""
	o.mu.Unlock()
	defer cancel()

	o.generateBlock(run, block)
	o.finishRun(run)
	return nil
}

// Stop aborts the active run. Completed blocks keep their activities;
// blocks still loading are reset to empty with a stopped marker. It
// reports whether there was anything to stop.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	run := o.run
	if run == nil || o.state.Run != RunRunning {
		o.mu.Unlock()
		return false
	}
	run.stopped = true
	run.cancel()
	for i := range o.state.Blocks {
		if o.state.Blocks[i].State == BlockLoading {
			o.state.Blocks[i].State = BlockEmpty
			o.state.Blocks[i].Activities = nil
			o.state.Blocks[i].Message = "Stopped"
		}
	}
	o.state.Run = RunStopped
	o.mu.Unlock()
	o.notifyf("Generation stopped.")
	return true
}

func (o *Orchestrator) beginRun(ctx context.Context, blocks []TimeBlock) *generationRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run != nil && o.state.Run == RunRunning {
		o.run.stopped = true
		o.run.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &generationRun{ctx: runCtx, cancel: cancel}
	o.run = run
	o.state.Run = RunRunning
	o.state.Blocks = make([]BlockResult, len(blocks))
	for i, b := range blocks {
		o.state.Blocks[i] = BlockResult{Block: b, State: BlockLoading}
	}
	return run
}

// finishRun marks the run completed unless it was stopped or superseded,
// and reports whether it ran to completion.
func (o *Orchestrator) finishRun(run *generationRun) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run != run || run.stopped {
		return false
	}
	o.state.Run = RunCompleted
	return true
}

func (o *Orchestrator) generateBlock(run *generationRun, block TimeBlock) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("block %d generation panicked: %v", block.ID, r)
			o.commitBlock(run, block.ID, func(br *BlockResult) {
				br.State = BlockError
				br.Activities = nil
				br.Message = fmt.Sprintf("unexpected failure: %v", r)
			})
		}
	}()

	o.mu.Lock()
	data := blockPromptData{
		Block:       block,
		City:        o.state.Location.City,
		Environment: o.state.Environment,
		Clothing:    o.state.Clothing,
		Preferences: o.state.Preferences,
		Previous:    o.previousActivitiesLocked(block.ID),
		Events:      o.state.Events,
	}
	// Venue suggestions only make sense when the user wants company.
	if o.state.Preferences.SocialLevel != "low" {
		data.Venues = o.state.Venues
	}
	o.mu.Unlock()

	var acts []Activity
	if o.gw != nil {
		prompt, err := buildBlockPrompt(data)
		if err != nil {
			o.commitBlock(run, block.ID, func(br *BlockResult) {
				br.State = BlockError
				br.Message = err.Error()
			})
			return
		}
		raw, err := o.gw.Complete(run.ctx, fmt.Sprintf("block-%d", block.ID), prompt, o.blockSink(block))
		if err != nil {
			// Stopped or cancelled; the block was already reset by Stop.
			return
		}
		acts = decodeActivities(raw)
	}
	if len(acts) == 0 {
		acts = FallbackActivities(block, data.Environment, data.Clothing, data.Preferences, data.Previous)
	}
	o.commitBlock(run, block.ID, func(br *BlockResult) {
		br.State = BlockComplete
		br.Activities = acts
		br.Message = ""
	})
}

// commitBlock applies a mutation to one block if the run is still current.
// A stopped or superseded run writes nothing; stop always wins.
func (o *Orchestrator) commitBlock(run *generationRun, blockID int, apply func(*BlockResult)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run != run || run.stopped {
		return
	}
	if idx := o.state.blockIndex(blockID); idx >= 0 {
		apply(&o.state.Blocks[idx])
	}
}

// previousActivitiesLocked gathers activity titles from blocks already
// complete so later prompts can avoid repeating them. Blocks generated in
// parallel may not see each other; the fallback path dedupes again on
// commit order.
func (o *Orchestrator) previousActivitiesLocked(excludeBlockID int) []string {
	var out []string
	for _, b := range o.state.Blocks {
		if b.Block.ID == excludeBlockID || b.State != BlockComplete {
			continue
		}
		for _, a := range b.Activities {
			out = append(out, a.Activity)
		}
	}
	return out
}

func (o *Orchestrator) blockSink(block TimeBlock) llm.StatusSink {
	if o.status == nil {
		return nil
	}
	return func(msg string) {
		o.status(fmt.Sprintf("%s: %s", block.Label, msg))
	}
}

func (o *Orchestrator) notifyf(format string, args ...any) {
	if o.notify == nil {
		return
	}
	o.notify(fmt.Sprintf(format, args...))
}
