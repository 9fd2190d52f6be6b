package planner

import (
	"encoding/json"
	"strings"
)

// Activity is a single planned entry within a time block. Field names match
// the JSON contract the model is asked to produce.
type Activity struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
	Clothing string `json:"clothing,omitempty"`
	Meal     string `json:"meal,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Details  string `json:"details,omitempty"`
}

// decodeActivities accepts either a JSON array of activities or a single
// activity object and normalizes both into a slice. Entries without an
// activity description are dropped.
func decodeActivities(raw json.RawMessage) []Activity {
	if len(raw) == 0 {
		return nil
	}
	var acts []Activity
	if err := json.Unmarshal(raw, &acts); err != nil {
		var single Activity
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		acts = []Activity{single}
	}
	out := acts[:0]
	for _, a := range acts {
		if strings.TrimSpace(a.Activity) == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
