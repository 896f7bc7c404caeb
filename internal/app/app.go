package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/auth"
	"github.com/chatcore-io/chatcore-server/internal/config"
	"github.com/chatcore-io/chatcore-server/internal/core"
	"github.com/chatcore-io/chatcore-server/internal/store"
	"github.com/chatcore-io/chatcore-server/internal/store/memstore"
	"github.com/chatcore-io/chatcore-server/internal/store/mongo"
	transporthttp "github.com/chatcore-io/chatcore-server/internal/transport/http"
)

// App wires together store, core and transport layers.
type App struct {
	server            *stdhttp.Server
	shutdownTimeout   time.Duration
	reconcileInterval time.Duration
	hub               *core.Hub
	store             store.Store
	log               *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    24 * time.Hour,
	}

	hub := core.NewHub(st, cfg.MaxMessageChars, cfg.SendTimeout, logger)
	server := transporthttp.NewServer(hub, jwtConfig, cfg, logger)

	return &App{
		server:            server,
		shutdownTimeout:   cfg.ShutdownTimeout,
		reconcileInterval: cfg.ReconcileInterval,
		hub:               hub,
		store:             st,
		log:               logger,
	}, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.Store, error) {
	switch cfg.StoreKind {
	case config.StoreKindMemory:
		logger.Info().Msg("using in-memory store")
		return memstore.New(), nil
	case config.StoreKindMongo:
		st, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureIndexes(ctx); err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = st.Close(closeCtx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongodb")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.StoreKind)
	}
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.RunReconciler(ctx, a.reconcileInterval)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

func (a *App) cleanup() {
	closeCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.store.Close(closeCtx); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
	} else {
		a.log.Info().Msg("store closed")
	}
}
