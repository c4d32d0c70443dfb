package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/revittco/costgate/internal/api"
	"github.com/revittco/costgate/internal/audit"
	"github.com/revittco/costgate/internal/cache"
	"github.com/revittco/costgate/internal/config"
	"github.com/revittco/costgate/internal/consent"
	"github.com/revittco/costgate/internal/gateway"
	"github.com/revittco/costgate/internal/metrics"
	"github.com/revittco/costgate/internal/oauth"
	"github.com/revittco/costgate/internal/secrets"
	"github.com/revittco/costgate/internal/store"
	"github.com/revittco/costgate/internal/store/redis"
	"github.com/revittco/costgate/internal/store/sqlite"
	"github.com/revittco/costgate/internal/tools"
	"github.com/revittco/costgate/internal/upstream"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const purgeInterval = 10 * time.Minute

// app is the set of components shared by both transports.
type app struct {
	cfg       *config.Config
	db        *sqlite.DB
	redis     *redis.SessionStore
	sessions  store.SessionStore
	client    *upstream.Client
	responses *cache.Cache[json.RawMessage]
	metrics   *metrics.Metrics
	auditBus  *audit.Bus
	gateway   *gateway.Handler
}

func cmdServe(args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags := config.NewFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(flags.Sources())
	if err != nil {
		return err
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	// stdout carries the MCP stream in stdio mode.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	switch cfg.Mode {
	case config.ModeStdio:
		logger.Info("starting in stdio mode", "version", version)
		return a.runStdio(ctx)
	default:
		return a.runHTTP(ctx)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:       cfg,
		db:        db,
		sessions:  db,
		metrics:   metrics.New(),
		responses: cache.New[json.RawMessage](0, cfg.CacheTTL),
		auditBus:  audit.NewBus(),
	}

	if cfg.RedisURL != "" {
		rs, err := redis.Open(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.redis, a.sessions = rs, rs
		slog.Info("customer sessions stored in redis")
	}

	a.client = upstream.NewClient(cfg.UpstreamURL, &http.Client{Timeout: cfg.UpstreamTimeout})
	a.client.MaxResults = cfg.MaxResults
	a.client.Cache = a.responses
	a.client.Metrics = a.metrics

	registry := tools.NewRegistry(a.client, a.metrics)
	auditor := audit.NewLogger(db, a.auditBus, cfg.AuditRedact)
	a.gateway = gateway.NewHandler(registry, a.sessions, auditor, version)
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.db.Close()
}

// runStdio serves a single session authenticated by the configured API key.
func (a *app) runStdio(ctx context.Context) error {
	cfg := a.cfg
	id, err := consent.Identify(ctx, a.client, cfg.APIKey, cfg.OperatorDomain, cfg.OperatorContext)
	if err != nil {
		return fmt.Errorf("validate api key: %w", err)
	}
	customerContext := a.gateway.ResolveContext(ctx, cfg.APIKey, cfg.CustomerContext)
	sess := gateway.NewSession(gateway.TransportStdio, upstream.Auth{
		Credential:      cfg.APIKey,
		CustomerContext: customerContext,
	}, id.IsOperator())
	slog.Info("api key accepted",
		"domain", id.Domain,
		"operator", id.IsOperator(),
		"customer_context", customerContext,
	)
	return gateway.NewServer(a.gateway, sess).RunStdio(ctx)
}

func (a *app) runHTTP(ctx context.Context) error {
	cfg := a.cfg
	enc, err := buildEncryptor(cfg)
	if err != nil {
		return err
	}

	issuer := cfg.ExternalURL
	if issuer == "" {
		issuer = httpURLFromAddr(cfg.HTTPAddr)
	}
	if cfg.JWTSecret == "" {
		slog.Warn("COSTGATE_JWT_SECRET not set; access tokens will not survive a restart")
	}
	provider, err := oauth.NewProvider(a.db, secrets.NewManager(enc), oauth.Config{
		Issuer:     issuer,
		SigningKey: []byte(cfg.JWTSecret),
		TokenTTL:   cfg.TokenTTL,
	})
	if err != nil {
		return err
	}

	deps := api.RouterDeps{
		Store:    a.db,
		Provider: provider,
		Consent: &consent.Workflow{
			Validator:       a.client,
			Sessions:        a.sessions,
			Completer:       provider,
			OperatorDomain:  cfg.OperatorDomain,
			OperatorContext: cfg.OperatorContext,
			Metrics:         a.metrics,
		},
		Gateway:           a.gateway,
		Metrics:           a.metrics,
		Responses:         a.responses,
		IdentityTTL:       cfg.IdentityTTL,
		AuditBus:          a.auditBus,
		AdminToken:        cfg.AdminToken,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Version:           version,
	}
	if a.redis != nil {
		deps.Sessions = a.redis
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() {
			slog.Info("http server listening", "addr", cfg.HTTPAddr, "issuer", issuer)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()
		select {
		case <-ctx.Done():
			slog.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := provider.PurgeExpired(ctx)
				if err != nil {
					slog.Warn("purge expired grants failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("purged expired grants", "count", n)
				}
			}
		}
	})

	return g.Wait()
}

// buildEncryptor loads the configured age key, or one generated next to the
// database, falling back to an in-memory key.
func buildEncryptor(cfg *config.Config) (*secrets.AgeEncryptor, error) {
	if cfg.AgeKeyPath != "" {
		return secrets.NewAgeEncryptor(cfg.AgeKeyPath)
	}
	keyPath := cfg.DBDSN + ".age"
	enc, err := secrets.NewAgeEncryptor(keyPath)
	if err != nil {
		slog.Warn("failed to create auto key file, falling back to ephemeral",
			"path", keyPath, "error", err)
		return secrets.NewEphemeralEncryptor()
	}
	slog.Info("using auto-generated age key", "path", keyPath)
	return enc, nil
}
