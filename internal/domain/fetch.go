package domain

import "time"

// FetchRecord is the persisted outcome of one fetch attempt.
type FetchRecord struct {
	URL       string        `json:"url"`
	Filename  string        `json:"filename"`
	Path      string        `json:"path"`
	Bytes     int           `json:"bytes"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
}

func (r FetchRecord) OK() bool {
	return r.Error == ""
}
