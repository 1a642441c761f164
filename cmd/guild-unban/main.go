package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/guild-unban/internal/config"
	"github.com/Sternrassler/guild-unban/internal/preflight"
	"github.com/Sternrassler/guild-unban/internal/prompt"
	"github.com/Sternrassler/guild-unban/pkg/client"
	"github.com/Sternrassler/guild-unban/pkg/logging"
	"github.com/Sternrassler/guild-unban/pkg/metrics"
	"github.com/Sternrassler/guild-unban/pkg/pagination"
	"github.com/Sternrassler/guild-unban/pkg/ratelimit"
	"github.com/Sternrassler/guild-unban/pkg/unban"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Getenv(config.PathEnv), os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Output = stderr
	_, logFile := logging.Setup(logCfg)
	defer logFile.Close()
	logger := logging.NewLogger("main")

	if cfg.Metrics.Addr != "" {
		server := metrics.NewServer(cfg.Metrics.Addr)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}()
	}

	p := prompt.New(stdin, stdout)

	token := cfg.Token
	if token == "" {
		fmt.Fprintln(stdout, "Checking for token file...")
		token, err = prompt.ResolveToken(cfg.TokenFile, p)
		if err != nil {
			return err
		}
	}

	clientCfg := cfg.ClientConfig(token)
	if cfg.Redis.URL != "" {
		redisClient, err := connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		clientCfg.RateLimitStore = ratelimit.NewRedisStore(redisClient)
		logger.Info().Msg("Sharing rate limit state through Redis")
	}

	api, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create Discord client: %w", err)
	}
	defer api.Close()

	app, err := preflight.Token(ctx, api)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Running as %s\n", app.Name)

	guildID, ok := cfg.Guild()
	if !ok {
		if guildID, err = p.AskGuildID(); err != nil {
			return err
		}
	}

	guild, err := preflight.Guild(ctx, api, app, guildID)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Working at %s guild.\n", guild.Name)

	count := cfg.Count
	if count == 0 {
		if count, err = p.AskCount(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	orchestrator := unban.NewOrchestrator(
		pagination.NewBanFetcher(api),
		unban.NewExecutor(api),
		unban.NewConsoleReporter(stdout),
		unban.Config{OutputDir: cfg.OutputDir},
	)

	result, err := orchestrator.Run(ctx, guildID, count)
	if err != nil {
		return err
	}

	logger.Info().
		Str("guild_id", guildID.String()).
		Int("unbanned", result.Unbanned).
		Int("failed", result.Failed).
		Strs("audit_files", result.AuditFiles).
		Msg("Done")
	return nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to Redis at %s: %w", opts.Addr, err)
	}
	return redisClient, nil
}
