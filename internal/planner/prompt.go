package planner

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"ai-day-planner/internal/environment"
	"ai-day-planner/internal/events"
	"ai-day-planner/internal/places"
)

//go:embed prompts/block_prompt.md
var blockPromptSource string

// text/template rather than html/template: the rendered prompt carries raw
// quotes and JSON examples that must not be escaped.
var blockPromptTmpl = template.Must(template.New("block_prompt").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(blockPromptSource))

type blockPromptData struct {
	Block       TimeBlock
	City        string
	Environment environment.Snapshot
	AQI         string
	Clothing    string
	Preferences Preferences
	Previous    []string
	Venues      []places.Venue
	Events      []events.Event
}

func buildBlockPrompt(data blockPromptData) (string, error) {
	if data.Environment.AQI != nil {
		data.AQI = fmt.Sprintf("%d", *data.Environment.AQI)
	}
	var sb strings.Builder
	if err := blockPromptTmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering block prompt: %w", err)
	}
	return sb.String(), nil
}
