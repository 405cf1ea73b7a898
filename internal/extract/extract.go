// Package extract parses listing page markup into structured records.
//
// Extraction is heuristic: the listing HTML carries no guarantees, so every
// field is resolved through an ordered list of fallback rules and absence of
// matches yields an empty result rather than an error.
package extract

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catwatch/internal/model"
)

var (
	yearRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:years?|yrs?)\b`)
	monthRe = regexp.MustCompile(`(?i)(\d+)\s*(?:months?|mos?)\b`)
	countRe = regexp.MustCompile(`(?i)\b(\d+)\s+(?:cats?|kittens?|results?|matches?)\b`)
	digitRe = regexp.MustCompile(`\d+`)
)

// Extractor parses one listing page at a time. It is configured with the
// site origin (for absolutizing relative URLs) and the collection path
// segment that detail links start with.
type Extractor struct {
	origin     *url.URL
	collection string
	linkRe     *regexp.Regexp
	log        *slog.Logger
}

// New creates an Extractor for the site hosting listingURL. collection is
// the first path segment of detail links, e.g. "cats" for /cats/12345/murzik.
func New(listingURL, collection string, log *slog.Logger) (*Extractor, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("listing url %q is not absolute", listingURL)
	}

	linkRe := regexp.MustCompile(`^/` + regexp.QuoteMeta(collection) + `/(\d+)(?:/([^/?#]+))?/?$`)

	return &Extractor{
		origin:     &url.URL{Scheme: u.Scheme, Host: u.Host},
		collection: collection,
		linkRe:     linkRe,
		log:        log,
	}, nil
}

// Parse extracts all records from one page's markup, plus the declared
// total record count when the page exposes one. It never fails: malformed
// or unrecognized markup yields an empty record slice and TotalCount 0.
func (e *Extractor) Parse(markup string) ([]model.Record, model.PageInfo) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.log.Warn("unparseable markup", "error", err)
		return nil, model.PageInfo{}
	}
	return e.extractRecords(doc), e.extractPageInfo(doc)
}

func (e *Extractor) extractRecords(doc *goquery.Document) []model.Record {
	var records []model.Record
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		id, slug, ok := e.matchDetailLink(href)
		if !ok {
			return
		}
		// Duplicate anchors for the same cat collapse to the first occurrence.
		if seen[id] {
			return
		}
		seen[id] = true

		records = append(records, e.buildRecord(a, id, slug))
	})

	return records
}

// matchDetailLink reports whether href points at a record detail page and
// returns the numeric ID and optional display slug.
func (e *Extractor) matchDetailLink(href string) (id, slug string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", "", false
	}
	if u.Host != "" && u.Host != e.origin.Host {
		return "", "", false
	}
	m := e.linkRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func (e *Extractor) buildRecord(a *goquery.Selection, id, slug string) model.Record {
	scope := candidateScope(a)

	name := firstMatch(scope, nameRules)
	if name == "" {
		name = synthesizeName(e.collection, id)
	}

	ageText := firstMatch(scope, ageRules)
	ageMonths := AgeMonths(ageText)

	return model.Record{
		ID:          id,
		Name:        name,
		AgeText:     ageText,
		AgeMonths:   ageMonths,
		ImageURL:    e.extractImage(scope),
		DetailURL:   e.detailURL(id, slug),
		Description: extractDescription(scope, name, ageText),
	}
}

// candidateScope is the markup region a record's fields are read from:
// the enclosing card/list element when one exists, else the anchor itself.
func candidateScope(a *goquery.Selection) *goquery.Selection {
	if scope := a.Closest("li, article, .card, .cat-card, .item"); scope.Length() > 0 {
		return scope
	}
	return a
}

// textRule is one (predicate, extractor) step of a fallback cascade.
// Rules are evaluated top to bottom; the first non-empty result wins.
type textRule struct {
	name string
	fn   func(scope *goquery.Selection) string
}

var nameRules = []textRule{
	{"heading or name class", func(scope *goquery.Selection) string {
		return collapse(scope.Find("h1, h2, h3, h4, .name, .cat-name, .title").First().Text())
	}},
	{"image alt", func(scope *goquery.Selection) string {
		alt, _ := scope.Find("img").First().Attr("alt")
		return collapse(alt)
	}},
	{"anchor title attribute", func(scope *goquery.Selection) string {
		title, _ := scope.Find("a[title]").First().Attr("title")
		return collapse(title)
	}},
}

var ageRules = []textRule{
	{"age class element", func(scope *goquery.Selection) string {
		return collapse(scope.Find("[class*=age]").First().Text())
	}},
	{"text pattern scan", func(scope *goquery.Selection) string {
		text := collapse(scope.Text())
		var parts []string
		if m := yearRe.FindString(text); m != "" {
			parts = append(parts, m)
		}
		if m := monthRe.FindString(text); m != "" {
			parts = append(parts, m)
		}
		return strings.Join(parts, " ")
	}},
}

func firstMatch(scope *goquery.Selection, rules []textRule) string {
	for _, r := range rules {
		if v := r.fn(scope); v != "" {
			return v
		}
	}
	return ""
}

// AgeMonths parses a free-form age string into total months. A year count
// and a month count in the same text are summed. Unparsable text yields 0,
// which the default eligibility filter excludes.
func AgeMonths(text string) int {
	months := 0
	if m := yearRe.FindStringSubmatch(text); m != nil {
		years, _ := strconv.Atoi(m[1])
		months += years * 12
	}
	if m := monthRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		months += n
	}
	return months
}

func (e *Extractor) extractImage(scope *goquery.Selection) string {
	img := scope.Find("img").First()
	if img.Length() == 0 {
		return ""
	}

	src, _ := img.Attr("src")
	if src == "" {
		// Lazy-loaded images keep the real URL in a data attribute.
		for _, attr := range []string{"data-src", "data-lazy-src", "data-original"} {
			if v, ok := img.Attr(attr); ok && v != "" {
				src = v
				break
			}
		}
	}
	if src == "" {
		return ""
	}

	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	return e.origin.ResolveReference(u).String()
}

func (e *Extractor) detailURL(id, slug string) string {
	path := "/" + e.collection + "/" + id
	if slug != "" {
		path += "/" + slug
	}
	return e.origin.String() + path
}

// extractDescription falls back to the scope's full text with the already
// extracted name and age substrings removed.
func extractDescription(scope *goquery.Selection, name, ageText string) string {
	text := collapse(scope.Text())
	if name != "" {
		text = strings.ReplaceAll(text, name, "")
	}
	if ageText != "" {
		text = strings.ReplaceAll(text, ageText, "")
	}
	return collapse(text)
}

func (e *Extractor) extractPageInfo(doc *goquery.Document) model.PageInfo {
	// Preferred: a dedicated counter element.
	counter := collapse(doc.Find(".results-count, .total-count, .count").First().Text())
	if m := digitRe.FindString(counter); m != "" {
		n, _ := strconv.Atoi(m)
		return model.PageInfo{TotalCount: n}
	}

	// Fallback: "<digits> <unit-word>" anywhere in the page text.
	if m := countRe.FindStringSubmatch(doc.Text()); m != nil {
		n, _ := strconv.Atoi(m[1])
		return model.PageInfo{TotalCount: n}
	}

	return model.PageInfo{}
}

func synthesizeName(collection, id string) string {
	singular := strings.TrimSuffix(collection, "s")
	if singular == "" {
		singular = collection
	}
	return strings.ToUpper(singular[:1]) + singular[1:] + " " + id
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
