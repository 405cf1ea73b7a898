// Package model defines the domain types used across the application.
package model

// Record is a single cat discovered on the listing source.
// Records are rebuilt from live HTML on every run and never persisted;
// only their IDs survive a run, in the seen store.
type Record struct {
	// ID is the numeric listing identifier as a string. Two records with
	// equal IDs are the same cat regardless of other field differences.
	ID          string
	Name        string
	AgeText     string
	AgeMonths   int
	ImageURL    string
	DetailURL   string
	Description string
}

// PageInfo carries the total record count declared on the first page.
// TotalCount is 0 when the listing does not expose a counter.
type PageInfo struct {
	TotalCount int
}

// Subscriber is one notification destination read from the directory.
type Subscriber struct {
	ChatID int64
	Name   string
}

// RunResult is the outcome of one pipeline run, returned to the trigger caller.
type RunResult struct {
	OK         bool   `json:"ok"`
	TotalCats  int    `json:"totalCats"`
	TotalPages int    `json:"totalPages"`
	Found      int    `json:"found"`
	New        int    `json:"new"`
	Warning    string `json:"warning,omitempty"`
	Timestamp  string `json:"timestamp"`
	Error      string `json:"error,omitempty"`
}
