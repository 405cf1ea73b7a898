// Package pipeline orchestrates one full listing scan:
// fetch pages, extract records, filter, detect novelty, notify, commit.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catwatch/internal/config"
	"catwatch/internal/extract"
	"catwatch/internal/fetcher"
	"catwatch/internal/filter"
	"catwatch/internal/model"
	"catwatch/internal/notify"
	"catwatch/internal/seen"
	"catwatch/internal/subscribers"
)

// Pipeline runs the ingestion flow for one monitored listing query.
// A run is strictly sequential; overlapping runs may double-notify but
// never lose records (the seen store is only written after delivery was
// attempted).
type Pipeline struct {
	cfg       *config.Config
	fetcher   *fetcher.Fetcher
	extractor *extract.Extractor
	store     seen.Store
	directory subscribers.Directory
	notifier  *notify.Notifier
	log       *slog.Logger

	key       string
	pageDelay time.Duration
}

// New creates a Pipeline. The seen-store namespace key is derived from the
// configured listing URL so separate monitored queries never collide.
func New(cfg *config.Config, f *fetcher.Fetcher, e *extract.Extractor, store seen.Store,
	directory subscribers.Directory, notifier *notify.Notifier, log *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		fetcher:   f,
		extractor: e,
		store:     store,
		directory: directory,
		notifier:  notifier,
		log:       log,
		key:       seen.Fingerprint(cfg.ListingURL),
		pageDelay: 1 * time.Second,
	}
}

// SetPageDelay overrides the inter-page fetch delay (useful for testing).
func (p *Pipeline) SetPageDelay(d time.Duration) {
	p.pageDelay = d
}

// PlanPages derives how many pages must be fetched from the declared total
// and the page size. An undiscoverable total plans a single page.
func PlanPages(totalCount, pageSize int) int {
	if totalCount <= 0 || pageSize <= 0 {
		return 1
	}
	pages := (totalCount + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// Run executes one scan and always returns a structured result. Only a
// first-page fetch failure or a seen-store failure fails the run; later
// page failures degrade to partial coverage with a warning.
func (p *Pipeline) Run(ctx context.Context) model.RunResult {
	ts := time.Now().UTC().Format(time.RFC3339)

	first, err := p.fetcher.FetchPage(ctx, p.cfg.ListingURL)
	if err != nil {
		p.log.Error("fetch first page", "url", p.cfg.ListingURL, "error", err)
		return failResult(ts, fmt.Errorf("fetch first page: %w", err))
	}

	records, info := p.extractor.Parse(first)
	totalPages := PlanPages(info.TotalCount, p.cfg.PageSize)
	p.log.Info("planned pages", "total_count", info.TotalCount, "total_pages", totalPages)

	var warnings []string
	records, pageWarning := p.fetchRemaining(ctx, records, totalPages)
	if pageWarning != "" {
		warnings = append(warnings, pageWarning)
	}

	merged := dedupe(records)
	if len(merged) == 0 {
		p.log.Warn("no records extracted", "url", p.cfg.ListingURL)
		warnings = append(warnings, "no records extracted")
	}

	res := filter.Apply(merged, filter.Options{
		MinAgeMonths:   p.cfg.MinAgeMonths,
		ExcludeGrouped: p.cfg.ExcludeGrouped,
	})
	p.log.Info("filtered records",
		"total", len(merged),
		"eligible", len(res.Eligible),
		"removed_by_age", res.RemovedByAge,
		"removed_grouped", res.RemovedGrouped,
	)

	fresh, err := p.detectNew(ctx, res.Eligible)
	if err != nil {
		p.log.Error("novelty check", "error", err)
		return failResult(ts, err)
	}

	result := model.RunResult{
		OK:         true,
		TotalCats:  info.TotalCount,
		TotalPages: totalPages,
		Found:      len(res.Eligible),
		New:        len(fresh),
		Timestamp:  ts,
	}

	if len(fresh) > 0 {
		warning, err := p.notifyAndCommit(ctx, fresh)
		if err != nil {
			return failResult(ts, err)
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}

	result.Warning = strings.Join(warnings, "; ")
	return result
}

// fetchRemaining fetches pages 2..totalPages sequentially with the
// configured inter-page delay. A failure mid-pagination keeps whatever was
// collected so far: partial coverage beats no coverage.
func (p *Pipeline) fetchRemaining(ctx context.Context, records []model.Record, totalPages int) ([]model.Record, string) {
	for page := 2; page <= totalPages; page++ {
		if !p.pause(ctx) {
			return records, fmt.Sprintf("cancelled before page %d", page)
		}

		u, err := pageURL(p.cfg.ListingURL, p.cfg.PageParam, page)
		if err != nil {
			return records, fmt.Sprintf("stopped at page %d: %v", page, err)
		}

		body, err := p.fetcher.FetchPage(ctx, u)
		if err != nil {
			p.log.Warn("fetch page", "page", page, "error", err)
			return records, fmt.Sprintf("stopped at page %d: %v", page, err)
		}

		more, _ := p.extractor.Parse(body)
		records = append(records, more...)
	}
	return records, ""
}

func (p *Pipeline) detectNew(ctx context.Context, eligible []model.Record) ([]model.Record, error) {
	var fresh []model.Record
	for _, rec := range eligible {
		isNew, err := p.store.IsNew(ctx, p.key, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("check novelty for %s: %w", rec.ID, err)
		}
		if isNew {
			fresh = append(fresh, rec)
		}
	}
	return fresh, nil
}

// notifyAndCommit delivers the new records and then commits their IDs.
// Per-subscriber delivery failures do not block the commit; the commit is
// deferred only when there was no destination to attempt at all, so the
// next run retries instead of silently dropping the records.
func (p *Pipeline) notifyAndCommit(ctx context.Context, fresh []model.Record) (string, error) {
	subs, err := p.directory.ListSubscribers(ctx)
	if err != nil {
		return "", fmt.Errorf("list subscribers: %w", err)
	}
	if len(subs) == 0 {
		return "no subscribers registered, commit deferred", nil
	}

	sum := p.notifier.NotifyAll(ctx, subs, fresh)
	p.log.Info("notified subscribers",
		"subscribers", len(subs),
		"sent", sum.Sent,
		"failed", sum.Failed,
		"overflow", sum.Overflow,
	)

	ids := make([]string, len(fresh))
	for i, rec := range fresh {
		ids[i] = rec.ID
	}
	if err := p.store.Commit(ctx, p.key, ids); err != nil {
		return "", fmt.Errorf("commit novelty: %w", err)
	}

	var warning string
	if sum.Failed > 0 {
		warning = fmt.Sprintf("%d deliveries failed", sum.Failed)
	}
	return warning, nil
}

func (p *Pipeline) pause(ctx context.Context) bool {
	if p.pageDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(p.pageDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// dedupe collapses records sharing an ID across pages, first occurrence wins.
func dedupe(records []model.Record) []model.Record {
	seenIDs := make(map[string]bool, len(records))
	out := records[:0]
	for _, rec := range records {
		if seenIDs[rec.ID] {
			continue
		}
		seenIDs[rec.ID] = true
		out = append(out, rec)
	}
	return out
}

func pageURL(listingURL, param string, page int) (string, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func failResult(ts string, err error) model.RunResult {
	return model.RunResult{
		OK:        false,
		Timestamp: ts,
		Error:     err.Error(),
	}
}
