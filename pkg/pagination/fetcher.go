package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/guild-unban/pkg/client"
	"github.com/disgoorg/snowflake/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	banPagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unban_ban_pages_fetched_total",
		Help: "Total ban list pages fetched by result",
	}, []string{"result"})

	banPageSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "unban_ban_page_records",
		Help:    "Number of records per fetched ban page",
		Buckets: []float64{0, 1, 10, 100, 250, 500, 750, 1000},
	})
)

// ErrInvalidLimit is returned for page limits outside 1..MaxPageSize.
var ErrInvalidLimit = errors.New("page limit out of range")

// BanRecord is one banned user as seen by the unban engine.
type BanRecord struct {
	UserID      snowflake.ID
	DisplayName string
}

// BanLister is the remote "list bans" capability.
type BanLister interface {
	ListBans(ctx context.Context, guildID snowflake.ID, after *snowflake.ID, limit int) ([]client.Ban, error)
}

// PageFetcher fetches one ordered page of ban records.
type PageFetcher interface {
	FetchPage(ctx context.Context, guildID snowflake.ID, cursor Cursor, limit int) ([]BanRecord, error)
}

// BanFetcher implements PageFetcher on top of a BanLister.
type BanFetcher struct {
	lister BanLister
	logger zerolog.Logger
}

// NewBanFetcher creates a new ban page fetcher.
func NewBanFetcher(lister BanLister) *BanFetcher {
	return &BanFetcher{
		lister: lister,
		logger: log.With().Str("component", "ban-fetcher").Logger(),
	}
}

// FetchPage returns up to limit bans strictly after cursor. An empty page
// means the ban list is exhausted.
func (f *BanFetcher) FetchPage(ctx context.Context, guildID snowflake.ID, cursor Cursor, limit int) ([]BanRecord, error) {
	if limit < 1 || limit > MaxPageSize {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidLimit, limit, MaxPageSize)
	}

	start := time.Now()

	var after *snowflake.ID
	if id, ok := cursor.After(); ok {
		after = &id
	}

	bans, err := f.lister.ListBans(ctx, guildID, after, limit)
	if err != nil {
		banPagesFetchedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list bans after %s: %w", cursor, err)
	}

	records := make([]BanRecord, 0, len(bans))
	for _, ban := range bans {
		if !cursor.includes(ban.User.ID) {
			f.logger.Warn().
				Str("cursor", cursor.String()).
				Str("user_id", ban.User.ID.String()).
				Msg("Dropping ban at or before cursor")
			continue
		}
		records = append(records, BanRecord{
			UserID:      ban.User.ID,
			DisplayName: ban.User.DisplayName(),
		})
	}

	result := "page"
	if len(records) == 0 {
		result = "empty"
	}
	banPagesFetchedTotal.WithLabelValues(result).Inc()
	banPageSize.Observe(float64(len(records)))

	f.logger.Debug().
		Str("guild_id", guildID.String()).
		Str("cursor", cursor.String()).
		Int("limit", limit).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fetched ban page")

	return records, nil
}
