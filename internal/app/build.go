package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antoniostano/pulse/internal/capture"
	"github.com/antoniostano/pulse/internal/checkin"
	"github.com/antoniostano/pulse/internal/config"
	"github.com/antoniostano/pulse/internal/gateway"
	"github.com/antoniostano/pulse/internal/httpapi"
	"github.com/antoniostano/pulse/internal/notify"
	"github.com/antoniostano/pulse/internal/observability"
	"github.com/antoniostano/pulse/internal/playback"
	"github.com/antoniostano/pulse/internal/session"
	"github.com/antoniostano/pulse/internal/store"
)

type BuildResult struct {
	Config      config.Config
	API         *httpapi.Server
	Sessions    *session.Manager
	Coordinator *checkin.Coordinator
	Store       store.Store
	Metrics     *observability.Metrics
	BackendMode string
	StoreMode   string

	// Cleanup should be called on shutdown to release external resources (DB, etc).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	clientStore, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}
	storeMode := "in-memory"
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		storeMode = "postgres"
	}

	// A token from the environment seeds the store so later boots work
	// without it.
	if token := strings.TrimSpace(cfg.BackendToken); token != "" {
		if err := clientStore.SaveAccessToken(ctx, token); err != nil {
			_ = clientStore.Close()
			return nil, fmt.Errorf("persist access token: %w", err)
		}
	}

	backend, backendMode, err := gateway.New(gateway.Config{
		Mode:    cfg.BackendMode,
		URL:     cfg.BackendURL,
		Tokens:  store.TokenSource{Store: clientStore, Fallback: cfg.BackendToken},
		Timeout: cfg.BackendTimeout,
	})
	if err != nil {
		_ = clientStore.Close()
		return nil, fmt.Errorf("backend init failed: %w", err)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)

	coordinator := checkin.NewCoordinator(checkin.Config{
		Sessions:       sessions,
		Backend:        backend,
		Store:          clientStore,
		Notifier:       notify.NewDeduper(notify.LogNotifier{}, 5*time.Second),
		Metrics:        metrics,
		Capture:        capture.NewService(backend),
		Speaker:        playback.NewSpeaker(backend),
		TotalQuestions: cfg.TotalQuestions,
		TurnTimeout:    cfg.TurnTimeout,
	})

	api := httpapi.New(cfg, coordinator, backend, metrics, backendMode, storeMode)

	cleanup := func() error {
		return clientStore.Close()
	}

	return &BuildResult{
		Config:      cfg,
		API:         api,
		Sessions:    sessions,
		Coordinator: coordinator,
		Store:       clientStore,
		Metrics:     metrics,
		BackendMode: backendMode,
		StoreMode:   storeMode,
		Cleanup:     cleanup,
	}, nil
}
