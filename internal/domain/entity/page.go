package entity

import "time"

type NavigationResult struct {
	Status   int    `json:"status"`
	FinalURL string `json:"final_url"`
	Title    string `json:"title"`
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Observation is what one cycle saw: the annotated screenshot and the label
// map drawn on it. It is only valid for the cycle that produced it.
type Observation struct {
	Screenshot  *Screenshot
	Labels      LabelMap
	URL         string
	Title       string
	PageContext string
	CapturedAt  time.Time
}
