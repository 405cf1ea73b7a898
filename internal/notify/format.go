package notify

import (
	"fmt"
	"strings"

	"catwatch/internal/model"
)

const maxDescriptionLen = 300

// FormatRecord formats one new cat as a notification message. The same
// text doubles as the photo caption when the record has an image.
func FormatRecord(rec model.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New cat: %s\n", rec.Name)
	if rec.AgeText != "" {
		fmt.Fprintf(&b, "Age: %s\n", rec.AgeText)
	}
	if rec.Description != "" {
		desc := rec.Description
		if len(desc) > maxDescriptionLen {
			desc = desc[:maxDescriptionLen] + "..."
		}
		b.WriteString("\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	if rec.DetailURL != "" {
		b.WriteString("\n")
		b.WriteString(rec.DetailURL)
	}
	return b.String()
}

// FormatOverflow summarizes records withheld by the per-run cap.
func FormatOverflow(count int, listingURL string) string {
	s := fmt.Sprintf("...and %d more new cats.", count)
	if listingURL != "" {
		s += " Full listing: " + listingURL
	}
	return s
}
