package planner

import (
	"strings"

	"ai-day-planner/internal/environment"
)

type fallbackOption struct {
	activity string
	indoor   bool
	meal     string
	notes    string
}

// Options are tried in order, so the same inputs always yield the same plan.
// Each band carries indoor and outdoor variants so that an unsafe-outdoors
// day still produces a full block.
var fallbackOptions = map[string][]fallbackOption{
	"early-morning": {
		{activity: "Morning stretch and light yoga", indoor: true, meal: "Porridge with fruit", notes: "Start slow, hydrate first"},
		{activity: "Brisk walk around the neighbourhood", indoor: false, meal: "Overnight oats before heading out"},
		{activity: "Journal over a slow breakfast", indoor: true, meal: "Eggs and toast"},
		{activity: "Short jog in the nearest park", indoor: false, meal: "Banana and coffee before the run"},
	},
	"morning": {
		{activity: "Deep-work session on your main project", indoor: true, notes: "Phone on silent"},
		{activity: "Visit a local market or high street", indoor: false, notes: "Good window before the midday crowds"},
		{activity: "Read a chapter of a book with coffee", indoor: true},
		{activity: "Cycle along a scenic route", indoor: false, notes: "Check tyre pressure before leaving"},
	},
	"midday": {
		{activity: "Cook a proper lunch at home", indoor: true, meal: "Pasta with seasonal vegetables"},
		{activity: "Picnic lunch in a nearby green space", indoor: false, meal: "Sandwiches and fruit"},
		{activity: "Try a new lunch spot close by", indoor: true, meal: "Whatever the daily special is"},
		{activity: "Walk to a cafe for lunch", indoor: false, meal: "Soup and a roll"},
	},
	"afternoon": {
		{activity: "Visit a museum or gallery", indoor: true, notes: "Many have free entry"},
		{activity: "Explore a part of town you rarely visit", indoor: false},
		{activity: "Catch up on errands and tidying", indoor: true},
		{activity: "Outdoor sketching or photography", indoor: false, notes: "Golden light starts late afternoon"},
	},
	"evening": {
		{activity: "Cook dinner and watch a film", indoor: true, meal: "Stir fry or curry"},
		{activity: "Evening stroll before dinner", indoor: false, meal: "Something light afterwards"},
		{activity: "Board games or a video call with friends", indoor: true, meal: "Order in"},
		{activity: "Dinner at a neighbourhood restaurant", indoor: false, meal: "Local cuisine"},
	},
	"wind-down": {
		{activity: "Reading and an early night", indoor: true, meal: "Herbal tea", notes: "Screens off by 21:30"},
		{activity: "Gentle stretching and tomorrow's to-do list", indoor: true, meal: "Warm milk"},
		{activity: "Stargazing from a quiet spot", indoor: false, notes: "Only worth it on a clear night"},
	},
}

func bandForHour(hour int) string {
	switch {
	case hour < 9:
		return "early-morning"
	case hour < 12:
		return "morning"
	case hour < 15:
		return "midday"
	case hour < 18:
		return "afternoon"
	case hour < 21:
		return "evening"
	default:
		return "wind-down"
	}
}

// FallbackActivities produces a deterministic activity for a block when the
// model is unavailable. Outdoor variants are skipped when conditions are
// unsafe or the user asked to stay inside, and anything resembling an
// already-planned activity is passed over.
func FallbackActivities(block TimeBlock, snap environment.Snapshot, clothing string, prefs Preferences, used []string) []Activity {
	options := fallbackOptions[bandForHour(block.StartHour)]
	outdoorOK := snap.OutdoorSafe() && prefs.IndoorPreference != "indoor"
	var chosen *fallbackOption
	for i := range options {
		opt := &options[i]
		if !opt.indoor && !outdoorOK {
			continue
		}
		if activityUsed(used, opt.activity) {
			continue
		}
		chosen = opt
		break
	}
	if chosen == nil {
		// Everything was filtered out; repeat the first viable option
		// rather than leave the block empty.
		for i := range options {
			if options[i].indoor || outdoorOK {
				chosen = &options[i]
				break
			}
		}
	}
	if chosen == nil {
		return nil
	}
	act := Activity{
		Time:     block.Start,
		Activity: chosen.activity,
		Meal:     chosen.meal,
		Notes:    chosen.notes,
	}
	if !chosen.indoor {
		act.Clothing = clothing
	}
	return []Activity{act}
}

// activityUsed does a loose comparison so "Brisk walk around the block" and
// "Brisk walk around the neighbourhood" count as the same suggestion.
func activityUsed(used []string, candidate string) bool {
	c := normalizeActivity(candidate)
	for _, u := range used {
		n := normalizeActivity(u)
		if n == "" {
			continue
		}
		if strings.HasPrefix(c, n) || strings.HasPrefix(n, c) {
			return true
		}
		if len(n) >= 12 && len(c) >= 12 && n[:12] == c[:12] {
			return true
		}
	}
	return false
}

func normalizeActivity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
