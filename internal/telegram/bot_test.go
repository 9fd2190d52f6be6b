package telegram

import (
	"strings"
	"testing"

	"ai-day-planner/internal/environment"
	"ai-day-planner/internal/location"
	"ai-day-planner/internal/planner"
)

func TestFormatPlanMarkdown(t *testing.T) {
	aqi := 42
	state := planner.PlanState{
		Location:    location.Location{City: "London"},
		Environment: environment.Snapshot{Temperature: 17.5, PrecipitationMm: 0.2, WindSpeedKmh: 12, AQI: &aqi},
		Clothing:    "light layers; trainers",
		Blocks: []planner.BlockResult{
			{
				Block: planner.TimeBlock{ID: 0, Start: "06:00", End: "09:00", Label: "Early Morning"},
				State: planner.BlockComplete,
				Activities: []planner.Activity{
					{Time: "06:30", Activity: "Morning run", Meal: "Porridge", Notes: "Hydrate first"},
				},
			},
			{
				Block: planner.TimeBlock{ID: 1, Start: "09:00", End: "12:00", Label: "Morning"},
				State: planner.BlockLoading,
			},
			{
				Block:   planner.TimeBlock{ID: 2, Start: "12:00", End: "15:00", Label: "Midday"},
				State:   planner.BlockEmpty,
				Message: "Stopped",
			},
		},
	}

	out := formatPlanMarkdown(state)

	for _, want := range []string{
		"*Your Day in London*",
		"AQI 42",
		"light layers; trainers",
		"*06:00–09:00 Early Morning*",
		"• Morning run 🍽 Porridge",
		"_Hydrate first_",
		"_generating..._",
		"_Stopped_",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		in, command, args string
	}{
		{"/plan something relaxing", "/plan", "something relaxing"},
		{"/stop", "/stop", ""},
		{"just some text", "", "just some text"},
		{"/city New York", "/city", "New York"},
	}
	for _, tc := range cases {
		command, args := splitCommand(tc.in)
		if command != tc.command || args != tc.args {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tc.in, command, args, tc.command, tc.args)
		}
	}
}

func TestParseBlockArgs(t *testing.T) {
	blockID, rest, err := parseBlockArgs("3 make it outdoors")
	if err != nil {
		t.Fatalf("parseBlockArgs: %v", err)
	}
	if blockID != 3 || rest != "make it outdoors" {
		t.Errorf("got (%d, %q)", blockID, rest)
	}

	if _, _, err := parseBlockArgs(""); err == nil {
		t.Error("expected error for empty args")
	}
	if _, _, err := parseBlockArgs("abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}
