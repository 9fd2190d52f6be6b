package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-day-planner/internal/llm"
)

// Preferences captures how the user wants their day shaped. Zero-value fields
// mean "no opinion" and are filled from defaults or left untouched on merge.
type Preferences struct {
	ActivityLevel      string   `json:"activity_level,omitempty"`
	IndoorPreference   string   `json:"indoor_preference,omitempty"`
	Budget             string   `json:"budget,omitempty"`
	SocialLevel        string   `json:"social_level,omitempty"`
	Focus              []string `json:"focus,omitempty"`
	CustomInstructions string   `json:"custom_instructions,omitempty"`
}

// DefaultPreferences is the starting point before the user has said anything.
func DefaultPreferences() Preferences {
	return Preferences{
		ActivityLevel:    "moderate",
		IndoorPreference: "flexible",
		Budget:           "flexible",
		SocialLevel:      "moderate",
	}
}

// Merge overlays non-empty fields of delta onto p and returns the result.
// Focus lists are appended with dedupe rather than replaced.
func (p Preferences) Merge(delta Preferences) Preferences {
	out := p
	if delta.ActivityLevel != "" {
		out.ActivityLevel = delta.ActivityLevel
	}
	if delta.IndoorPreference != "" {
		out.IndoorPreference = delta.IndoorPreference
	}
	if delta.Budget != "" {
		out.Budget = delta.Budget
	}
	if delta.SocialLevel != "" {
		out.SocialLevel = delta.SocialLevel
	}
	for _, f := range delta.Focus {
		if f == "" || containsFold(out.Focus, f) {
			continue
		}
		out.Focus = append(out.Focus, f)
	}
	if delta.CustomInstructions != "" {
		if out.CustomInstructions != "" {
			out.CustomInstructions += "; " + delta.CustomInstructions
		} else {
			out.CustomInstructions = delta.CustomInstructions
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

const preferencesPrompt = `Extract day-planning preferences from the user's message.
Message: %q
Return a JSON object with any of these keys that the message implies:
activity_level ("low", "moderate" or "high"), indoor_preference ("indoor",
"outdoor" or "flexible"), budget ("free", "low" or "flexible"), social_level
("low", "moderate" or "high"), focus (array of short topic strings).
Omit keys the message says nothing about. Return only JSON.`

// ParseInstructions turns free-form user text into a Preferences delta. It
// asks the model first and falls back to keyword heuristics when the model
// is unavailable or returns nothing usable. The original text is always
// preserved as a custom instruction.
func ParseInstructions(ctx context.Context, gw *llm.Gateway, text string) Preferences {
	text = strings.TrimSpace(text)
	if text == "" {
		return Preferences{}
	}
	if gw != nil {
		raw, err := gw.Complete(ctx, "preference-parser", fmt.Sprintf(preferencesPrompt, text), nil)
		if err == nil && raw != nil {
			var p Preferences
			if json.Unmarshal(raw, &p) == nil && !p.isEmpty() {
				p.CustomInstructions = text
				return p
			}
		}
	}
	p := heuristicPreferences(text)
	p.CustomInstructions = text
	return p
}

func (p Preferences) isEmpty() bool {
	return p.ActivityLevel == "" && p.IndoorPreference == "" && p.Budget == "" &&
		p.SocialLevel == "" && len(p.Focus) == 0
}

// heuristicPreferences scans for the handful of keywords that reliably signal
// a preference. It is intentionally conservative; unmatched text still ends
// up in CustomInstructions and reaches the model verbatim.
func heuristicPreferences(text string) Preferences {
	lower := strings.ToLower(text)
	var p Preferences
	switch {
	case strings.Contains(lower, "active") || strings.Contains(lower, "energetic") || strings.Contains(lower, "workout"):
		p.ActivityLevel = "high"
	case strings.Contains(lower, "relax") || strings.Contains(lower, "rest") || strings.Contains(lower, "calm") || strings.Contains(lower, "lazy"):
		p.ActivityLevel = "low"
	}
	switch {
	case strings.Contains(lower, "indoor") || strings.Contains(lower, "inside") || strings.Contains(lower, "at home"):
		p.IndoorPreference = "indoor"
	case strings.Contains(lower, "outdoor") || strings.Contains(lower, "outside") || strings.Contains(lower, "fresh air"):
		p.IndoorPreference = "outdoor"
	}
	switch {
	case strings.Contains(lower, "free") || strings.Contains(lower, "no money") || strings.Contains(lower, "cheap") || strings.Contains(lower, "budget"):
		p.Budget = "free"
	}
	switch {
	case strings.Contains(lower, "friends") || strings.Contains(lower, "social") || strings.Contains(lower, "people"):
		p.SocialLevel = "high"
	case strings.Contains(lower, "alone") || strings.Contains(lower, "quiet") || strings.Contains(lower, "by myself"):
		p.SocialLevel = "low"
	}
	return p
}
