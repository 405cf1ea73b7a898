// Package filter applies the eligibility rules to extracted records.
package filter

import (
	"regexp"
	"strings"

	"catwatch/internal/model"
)

// Options configures the two eligibility predicates.
type Options struct {
	// MinAgeMonths is the minimum age in months a record must have.
	// Records with unparsable age carry AgeMonths 0 and are excluded
	// when this is positive (fail-closed).
	MinAgeMonths int
	// ExcludeGrouped drops records whose name or description indicates
	// the cat must be adopted together with another.
	ExcludeGrouped bool
}

// Result is the filter outcome with per-rule removal counts.
type Result struct {
	Eligible       []model.Record
	RemovedByAge   int
	RemovedGrouped int
}

// Apply filters records by intersection of the age and grouped-adoption
// predicates.
func Apply(records []model.Record, opts Options) Result {
	var res Result
	for _, rec := range records {
		if rec.AgeMonths < opts.MinAgeMonths {
			res.RemovedByAge++
			continue
		}
		if opts.ExcludeGrouped && IsGrouped(rec.Name, rec.Description) {
			res.RemovedGrouped++
			continue
		}
		res.Eligible = append(res.Eligible, rec)
	}
	return res
}

// groupedRule is one textual heuristic for grouped adoptions. Rules are
// checked in order, first match wins.
type groupedRule struct {
	name  string
	match func(name, text string) bool
}

var (
	// Parenthetical co-listing in the name: "Luna (and Bella)", "Max (& Moritz)".
	pairedNameRe = regexp.MustCompile(`\((?:and|&)\s+[^)]*\)`)

	pairPhrases = []string{
		"bonded pair",
		"must be adopted together",
		"adopted together",
		"only together",
		"only in pairs",
		"come as a pair",
		"duo adoption",
	}

	siblingRe = regexp.MustCompile(`with (?:his|her|their) (?:sibling|brother|sister|litter\s?mates?)`)
)

var groupedRules = []groupedRule{
	{"paired name marker", func(name, _ string) bool {
		return pairedNameRe.MatchString(name)
	}},
	{"pair keyword phrase", func(_, text string) bool {
		for _, p := range pairPhrases {
			if strings.Contains(text, p) {
				return true
			}
		}
		return false
	}},
	{"sibling phrasing", func(_, text string) bool {
		return siblingRe.MatchString(text)
	}},
}

// IsGrouped reports whether the record text indicates a grouped adoption.
// This is a heuristic over scraped text, not ground truth: unseen phrasings
// slip through and generic pair wording can false-positive.
func IsGrouped(name, description string) bool {
	lowerName := strings.ToLower(name)
	text := lowerName + " " + strings.ToLower(description)
	for _, r := range groupedRules {
		if r.match(lowerName, text) {
			return true
		}
	}
	return false
}
