package schedule

// Suggestion is a self-study activity that fits in a free period.
type Suggestion struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	Category        string `json:"category"`
	Difficulty      string `json:"difficulty"`
}

// DefaultCatalogue is served when no catalogue is configured.
var DefaultCatalogue = []Suggestion{
	{ID: "1", Title: "Python Programming Challenge", Description: "Complete a coding challenge to improve your algorithm skills", DurationMinutes: 30, Category: "Programming", Difficulty: "intermediate"},
	{ID: "2", Title: "Career Planning Worksheet", Description: "Explore different career paths in your field of interest", DurationMinutes: 20, Category: "Career Development", Difficulty: "beginner"},
	{ID: "3", Title: "Digital Art Tutorial", Description: "Learn new digital design techniques and tools", DurationMinutes: 40, Category: "Creative Arts", Difficulty: "beginner"},
}

// Suggest keeps the catalogue entries that fit in freeMinutes, in catalogue order.
func Suggest(catalogue []Suggestion, freeMinutes int) []Suggestion {
	out := []Suggestion{}
	for _, s := range catalogue {
		if s.DurationMinutes <= freeMinutes {
			out = append(out, s)
		}
	}
	return out
}
