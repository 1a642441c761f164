package unban

import (
	"context"
	"time"

	"github.com/Sternrassler/guild-unban/pkg/client"
	"github.com/disgoorg/snowflake/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	unbanAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unban_attempts_total",
		Help: "Total remove-ban attempts by outcome",
	}, []string{"outcome"})

	unbanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "unban_attempt_duration_seconds",
		Help:    "Duration of remove-ban attempts",
		Buckets: prometheus.DefBuckets,
	})
)

// BanRemover is the remote "remove ban" capability.
type BanRemover interface {
	DeleteBan(ctx context.Context, guildID, userID snowflake.ID) error
}

// Unbanner executes a single unban and classifies its outcome.
type Unbanner interface {
	Execute(ctx context.Context, guildID, userID snowflake.ID) Outcome
}

// Executor issues exactly one remove-ban request per Execute call.
type Executor struct {
	remover BanRemover
	logger  zerolog.Logger
}

// NewExecutor creates an executor over remover.
func NewExecutor(remover BanRemover) *Executor {
	return &Executor{
		remover: remover,
		logger:  log.With().Str("component", "unban-executor").Logger(),
	}
}

// Execute removes the ban of userID. Errors become a Failed outcome carrying
// the error text; they are never returned.
func (e *Executor) Execute(ctx context.Context, guildID, userID snowflake.ID) Outcome {
	start := time.Now()
	err := e.remover.DeleteBan(ctx, guildID, userID)
	unbanDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		unbanAttemptsTotal.WithLabelValues("failed").Inc()

		event := e.logger.Warn().
			Err(err).
			Str("guild_id", guildID.String()).
			Str("user_id", userID.String())
		if client.IsCode(err, client.CodeUnknownBan) {
			event = event.Bool("already_unbanned", true)
		}
		event.Msg("Unban failed")

		return Failed(err.Error())
	}

	unbanAttemptsTotal.WithLabelValues("succeeded").Inc()
	e.logger.Debug().
		Str("guild_id", guildID.String()).
		Str("user_id", userID.String()).
		Dur("duration", time.Since(start)).
		Msg("Unbanned user")

	return Succeeded()
}
