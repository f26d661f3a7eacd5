package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/amishk599/jobhound/internal/adapter"
	"github.com/amishk599/jobhound/internal/ai"
	"github.com/amishk599/jobhound/internal/config"
	"github.com/amishk599/jobhound/internal/filter"
	"github.com/amishk599/jobhound/internal/mailbox"
	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/notifier"
	"github.com/amishk599/jobhound/internal/pipeline"
	"github.com/amishk599/jobhound/internal/ratelimit"
	"github.com/amishk599/jobhound/internal/retry"
	"github.com/amishk599/jobhound/internal/store"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	profile      model.Profile
	store        store.Store
	notifier     model.Notifier
	scorer       pipeline.AIScorer // nil when ai.enabled is false
	orchestrator *pipeline.Orchestrator

	closers []func() error
}

type appOptions struct {
	dryRun   bool // use a NopStore
	adapters bool // build the source adapters
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	a.profile = profile

	if opts.dryRun {
		logger.Info("dry-run mode enabled, nothing will be stored")
		a.store = store.NewNopStore()
	} else {
		st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	n, closeNotifier, err := setupNotifier(ctx, cfg, httpClient, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.notifier = n
	if closeNotifier != nil {
		a.closers = append(a.closers, closeNotifier)
	}

	a.scorer = setupScorer(cfg, profile, logger)

	var adapters []model.Adapter
	if opts.adapters {
		adapters = buildAdapters(ctx, cfg, n, logger)
	}

	a.orchestrator = pipeline.NewOrchestrator(adapters, a.store, n, a.scorer, profile, pipeline.Config{
		KeywordThreshold: cfg.Scoring.KeywordThreshold,
		AIThreshold:      cfg.Scoring.AIThreshold,
		Weights:          cfg.Scoring.Weights,
		CleanupDays:      cfg.Database.CleanupDays,
		AIBatchSize:      cfg.AI.BatchSize,
	}, logger)
	return a, nil
}

// Close releases the store and notifier connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

func setupNotifier(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (model.Notifier, func() error, error) {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger), nil, nil
	case "discord":
		logger.Info("using discord notifier")
		return notifier.NewDiscordNotifier(cfg.Notification.WebhookURL, httpClient, logger), nil, nil
	case "redis":
		rdb, err := notifier.NewRedisClient(ctx, cfg.Notification.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis notifier", "channel", cfg.Notification.RedisChannel)
		return notifier.NewRedisNotifier(rdb, cfg.Notification.RedisChannel, logger), rdb.Close, nil
	default:
		return notifier.NewLogNotifier(logger), nil, nil
	}
}

// setupScorer returns nil when AI scoring is disabled.
func setupScorer(cfg *config.Config, profile model.Profile, logger *slog.Logger) pipeline.AIScorer {
	if !cfg.AI.Enabled {
		return nil
	}
	provider := ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, &http.Client{Timeout: cfg.AI.Timeout})
	completer := retry.NewRetryCompleter(provider, cfg.AI.MaxRetries, 2*time.Second, logger)
	logger.Info("ai scoring enabled", "model", cfg.AI.Model)
	return ai.NewLLMScorer(completer, profile, logger)
}

func buildAdapters(ctx context.Context, cfg *config.Config, n model.Notifier, logger *slog.Logger) []model.Adapter {
	var adapters []model.Adapter

	if si := cfg.Sources.SearchIndex; si.Enabled {
		siCfg := adapter.SearchIndexConfig{
			BaseURL:      si.BaseURL,
			Queries:      si.Queries,
			Location:     si.Location,
			ContractType: si.ContractType,
			MaxPages:     si.MaxPages,
			HitsPerPage:  si.HitsPerPage,
		}
		a := adapter.NewSearchIndexAdapter(siCfg,
			&http.Client{Timeout: si.Timeout},
			ratelimit.NewPacer(si.Delay),
			filter.NewContractLocationFilter(si.ContractType, si.Location),
			logger.With("source", model.SourceSearchIndex),
		)
		adapters = append(adapters, a)
		logger.Info("registered source", "source", a.Name(), "queries", len(si.Queries))
	}

	if in := cfg.Sources.Inbox; in.Enabled {
		srcLogger := logger.With("source", model.SourceInbox)

		var mb adapter.Mailbox
		gm, err := mailbox.Open(ctx, in.CredentialsPath, in.TokenPath)
		switch {
		case errors.Is(err, mailbox.ErrNoToken):
			logger.Warn("no gmail token, run `jobhound auth gmail` first", "token_path", in.TokenPath)
		case err != nil:
			logger.Warn("gmail unavailable", "error", err)
		default:
			mb = gm
		}

		enrichCfg := adapter.EnrichConfig{
			Enabled:       in.FetchDetails,
			SessionCookie: in.SessionCookie,
			MaxFetches:    in.MaxFetches,
			UserAgents:    in.UserAgents,
		}
		enricher := adapter.NewEnricher(enrichCfg,
			&http.Client{Timeout: in.Timeout},
			ratelimit.NewPacer(in.Delay),
			n.SendMessage,
			srcLogger,
		)
		a := adapter.NewInboxAdapter(adapter.InboxConfig{
			Label:     in.Label,
			MaxEmails: in.MaxEmails,
		}, mb, enricher, srcLogger)
		adapters = append(adapters, a)
		logger.Info("registered source", "source", a.Name(), "label", in.Label, "fetch_details", in.FetchDetails)
	}

	return adapters
}
