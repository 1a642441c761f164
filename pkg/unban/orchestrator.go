// Package unban drives a bulk unban run: it pages through a guild's ban
// list, removes each ban, and records every success in an audit file.
package unban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/guild-unban/pkg/audit"
	"github.com/Sternrassler/guild-unban/pkg/pagination"
	"github.com/disgoorg/snowflake/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unban_runs_total",
		Help: "Total unban runs by mode and result",
	}, []string{"mode", "result"})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unban_batches_total",
		Help: "Total non-empty batches processed",
	})

	unbannedUsers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unban_users_unbanned_total",
		Help: "Total users unbanned and recorded in an audit file",
	})
)

// ErrCancelled is returned when the run context ends before the run completes.
var ErrCancelled = errors.New("unban run cancelled")

// Config holds orchestrator configuration.
type Config struct {
	// OutputDir is the directory audit files are written to (default: ".").
	OutputDir string

	// Now returns the run start time used in audit file names (default: time.Now).
	Now func() time.Time
}

// Result summarizes a run.
type Result struct {
	Requested    int
	Unbanned     int
	Failed       int
	PagesFetched int
	AuditFiles   []string
	// Exhausted is set when the run ended on an empty page.
	Exhausted bool
}

// Orchestrator runs the fetch, execute and record loop.
type Orchestrator struct {
	fetcher  pagination.PageFetcher
	unbanner Unbanner
	reporter Reporter
	config   Config
	logger   zerolog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(fetcher pagination.PageFetcher, unbanner Unbanner, reporter Reporter, cfg Config) *Orchestrator {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		fetcher:  fetcher,
		unbanner: unbanner,
		reporter: reporter,
		config:   cfg,
		logger:   log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run unbans up to requested users of guildID. Up to one page of requests is
// a single audit scope; larger requests are split into batches of
// pagination.MaxPageSize with one audit file each. The summary is always
// reported, including when Run returns an error.
func (o *Orchestrator) Run(ctx context.Context, guildID snowflake.ID, requested int) (*Result, error) {
	plan, err := pagination.NewPlan(requested)
	if err != nil {
		return nil, err
	}

	startedAt := o.config.Now()
	result := &Result{Requested: requested}

	mode := "single"
	if plan.MultiBatch() {
		mode = "multi"
	}

	o.logger.Info().
		Str("guild_id", guildID.String()).
		Int("requested", requested).
		Int("page_size", plan.PageSize).
		Int("pages", plan.Pages).
		Str("mode", mode).
		Msg("Starting unban run")

	if plan.MultiBatch() {
		err = o.runBatches(ctx, guildID, plan, startedAt, result)
	} else {
		err = o.runSingle(ctx, guildID, plan, startedAt, result)
	}

	o.reporter.Summary(result.Unbanned)

	status := "completed"
	if err != nil {
		status = "failed"
		o.logger.Error().
			Err(err).
			Int("unbanned", result.Unbanned).
			Int("failed", result.Failed).
			Msg("Unban run aborted")
	} else {
		o.logger.Info().
			Int("unbanned", result.Unbanned).
			Int("failed", result.Failed).
			Int("pages", result.PagesFetched).
			Bool("exhausted", result.Exhausted).
			Msg("Unban run finished")
	}
	runsTotal.WithLabelValues(mode, status).Inc()

	return result, err
}

// runSingle creates the run's audit file before the one page is fetched, so
// an empty ban list still leaves an empty report behind.
func (o *Orchestrator) runSingle(ctx context.Context, guildID snowflake.ID, plan pagination.Plan, startedAt time.Time, result *Result) error {
	path := audit.FileName(o.config.OutputDir, guildID, 0, startedAt)

	return audit.WithSink(path, func(sink *audit.Sink) error {
		result.AuditFiles = append(result.AuditFiles, path)

		page, err := o.fetch(ctx, guildID, pagination.Cursor{}, plan.PageSize, result)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			result.Exhausted = true
			o.reporter.NothingToUnban()
			return nil
		}

		return o.processPage(ctx, guildID, page, sink, result)
	})
}

func (o *Orchestrator) runBatches(ctx context.Context, guildID snowflake.ID, plan pagination.Plan, startedAt time.Time, result *Result) error {
	var cursor pagination.Cursor

	for batch := 1; batch <= plan.Pages; batch++ {
		page, err := o.fetch(ctx, guildID, cursor, plan.PageSize, result)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			result.Exhausted = true
			o.reporter.NoMoreUsers()
			return nil
		}

		path := audit.FileName(o.config.OutputDir, guildID, batch, startedAt)
		err = audit.WithSink(path, func(sink *audit.Sink) error {
			result.AuditFiles = append(result.AuditFiles, path)
			return o.processPage(ctx, guildID, page, sink, result)
		})
		if err != nil {
			return fmt.Errorf("batch %d: %w", batch, err)
		}
		batchesTotal.Inc()

		// The cursor follows page position, not outcome.
		last := page[len(page)-1].UserID
		cursor, err = cursor.Advance(last)
		if err != nil {
			return fmt.Errorf("batch %d: %w", batch, err)
		}

		o.logger.Debug().
			Int("batch", batch).
			Str("cursor", cursor.String()).
			Int("unbanned_total", result.Unbanned).
			Msg("Batch finished")
	}

	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, guildID snowflake.ID, cursor pagination.Cursor, limit int, result *Result) ([]pagination.BanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	page, err := o.fetcher.FetchPage(ctx, guildID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch ban page: %w", err)
	}
	result.PagesFetched++
	return page, nil
}

// processPage attempts every record in order. The attempt ordinal starts at 1
// for each page and counts failures as well as successes.
func (o *Orchestrator) processPage(ctx context.Context, guildID snowflake.ID, page []pagination.BanRecord, sink *audit.Sink, result *Result) error {
	for i, record := range page {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		ordinal := i + 1
		o.reporter.Attempt(ordinal, record)

		outcome := o.unbanner.Execute(ctx, guildID, record.UserID)
		if !outcome.OK() {
			result.Failed++
			o.reporter.Failure(ordinal, outcome.Reason())
			continue
		}

		if err := sink.Append(record); err != nil {
			return fmt.Errorf("record unban of %s: %w", record.UserID, err)
		}
		result.Unbanned++
		unbannedUsers.Inc()
	}
	return nil
}
