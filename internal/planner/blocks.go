package planner

// TimeBlock is one fixed window of the day for which activities are proposed.
// The block set is static configuration; it is never mutated at runtime.
type TimeBlock struct {
	ID        int    `json:"id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	StartHour int    `json:"-"`
	Label     string `json:"label"`
}

// DefaultBlocks returns the six standard blocks spanning 06:00–22:00.
func DefaultBlocks() []TimeBlock {
	return []TimeBlock{
		{ID: 0, Start: "06:00", End: "09:00", StartHour: 6, Label: "Early Morning"},
		{ID: 1, Start: "09:00", End: "12:00", StartHour: 9, Label: "Morning"},
		{ID: 2, Start: "12:00", End: "15:00", StartHour: 12, Label: "Midday"},
		{ID: 3, Start: "15:00", End: "18:00", StartHour: 15, Label: "Afternoon"},
		{ID: 4, Start: "18:00", End: "21:00", StartHour: 18, Label: "Evening"},
		{ID: 5, Start: "21:00", End: "22:00", StartHour: 21, Label: "Wind Down"},
	}
}
