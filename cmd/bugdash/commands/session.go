// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/kweid-platfrom/frontend-sub008/cmd/bugdash/cli"
	"github.com/kweid-platfrom/frontend-sub008/lib/access"
	"github.com/kweid-platfrom/frontend-sub008/lib/config"
	"github.com/kweid-platfrom/frontend-sub008/lib/dashboard"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore/memstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore/pgstore"
	"github.com/kweid-platfrom/frontend-sub008/lib/docstore/sqlitestore"
	"github.com/kweid-platfrom/frontend-sub008/lib/instrument"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputCBOR  = "cbor"
)

var outputFormats = []string{outputTable, outputJSON, outputCBOR}

// sessionParams are the flags every data command shares.
type sessionParams struct {
	ConfigPath  string
	Output      string
	LoadTimeout time.Duration
	Verbose     bool
}

func (p *sessionParams) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&p.ConfigPath, "config", "c", "", "path to bugdash.yaml (default: $"+config.EnvVar+")")
	flagSet.StringVarP(&p.Output, "output", "o", outputTable, "output format: table, json or cbor")
	flagSet.DurationVar(&p.LoadTimeout, "load-timeout", 30*time.Second, "how long to wait for the initial snapshot")
	flagSet.BoolVarP(&p.Verbose, "verbose", "v", false, "log at debug level")
}

// session is one opened store plus the dashboard running over it.
type session struct {
	params    sessionParams
	config    *config.Config
	logger    *slog.Logger
	dashboard *dashboard.Dashboard
	registry  *prometheus.Registry
	stdout    io.Writer
	out       *renderer

	// closers run in reverse order.
	closers []func() error
}

// withSession opens a session, runs fn, and closes the session. A
// close failure is reported only when fn succeeded.
func withSession(ctx context.Context, params sessionParams, stdout io.Writer, fn func(*session) error) (err error) {
	s, err := openSession(ctx, params, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(s)
}

func openSession(ctx context.Context, params sessionParams, stdout io.Writer) (*session, error) {
	if !slices.Contains(outputFormats, params.Output) {
		return nil, fmt.Errorf("--output must be one of %v, got %q", outputFormats, params.Output)
	}

	cfg, err := loadConfig(params.ConfigPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if params.Verbose {
		level = slog.LevelDebug
	}
	logger := cli.NewCommandLogger(level).With("environment", string(cfg.Environment))

	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	s := &session{
		params: params,
		config: cfg,
		logger: logger,
		stdout: stdout,
		out:    newRenderer(stdout, cfg.Engine.ShortIDLength),
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeStore)

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.dashboard = dashboard.New(dashboard.Options{
		Store:                    store,
		Logger:                   logger,
		Recorder:                 instrument.New(s.registry),
		RequireLoadedPermissions: cfg.Engine.RequireLoadedPermissions,
		MutationTimeout:          cfg.MutationTimeout(),
		BulkConcurrency:          cfg.Engine.BulkConcurrency,
		RetryTransient:           cfg.Engine.RetryTransient,
		ShortIDLength:            cfg.Engine.ShortIDLength,
	})
	s.closers = append(s.closers, func() error {
		s.dashboard.Close()
		return nil
	})

	if cfg.Metrics.Listen != "" {
		stop, err := serveMetrics(cfg.Metrics.Listen, s.registry, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, stop)
	}

	identity, payload, err := loadIdentity(cfg.Identity)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.dashboard.SetIdentity(identity, payload)
	s.dashboard.SetContext(cfg.Workspace)
	return s, nil
}

// Close releases everything the session opened.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (docstore.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		store, err := sqlitestore.Open(sqlitestore.Options{
			Path:         cfg.Store.SQLite.Path,
			PoolSize:     cfg.Store.SQLite.PoolSize,
			PollInterval: cfg.PollInterval(),
			Logger:       logger.With("component", "sqlitestore"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store, store.Close, nil
	case config.BackendPostgres:
		store, err := pgstore.Open(ctx, pgstore.Options{
			DSN:      cfg.Store.Postgres.DSN,
			Channel:  cfg.Store.Postgres.Channel,
			MaxConns: int32(cfg.Store.Postgres.MaxConns),
			Logger:   logger.With("component", "pgstore"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return store, func() error {
			store.Close()
			return nil
		}, nil
	default:
		logger.Warn("using the in-memory store; changes are lost on exit")
		store := memstore.New(memstore.Options{Logger: logger.With("component", "memstore")})
		return store, func() error { return nil }, nil
	}
}

// loadIdentity builds the signed-in identity from config. A missing
// user ID yields no identity; a missing permissions file yields
// provisional capabilities.
func loadIdentity(identityConfig config.IdentityConfig) (*access.Identity, *access.RolePayload, error) {
	if identityConfig.UserID == "" {
		return nil, nil, nil
	}
	identity := &access.Identity{
		UserID:      identityConfig.UserID,
		Email:       identityConfig.Email,
		DisplayName: identityConfig.DisplayName,
	}
	if identityConfig.PermissionsFile == "" {
		return identity, nil, nil
	}
	payload, err := access.LoadPayload(identityConfig.PermissionsFile)
	if err != nil {
		return nil, nil, err
	}
	return identity, payload, nil
}

// serveMetrics exposes registry on /metrics and returns a shutdown
// function.
func serveMetrics(address string, registry *prometheus.Registry, logger *slog.Logger) (func() error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}, nil
}

// awaitReady blocks until every feed has delivered its first snapshot.
// It fails when the workspace is unconfigured, access is restricted,
// or the load timeout passes first.
func (s *session) awaitReady(ctx context.Context) (dashboard.State, error) {
	updates, cancel := s.dashboard.Watch()
	defer cancel()

	timeout := time.NewTimer(s.params.LoadTimeout)
	defer timeout.Stop()

	for {
		state := s.dashboard.State()
		switch {
		case state.Access == dashboard.AccessSetupRequired:
			return state, fmt.Errorf("workspace setup required: %w", errOrUnknown(state.LastError))
		case state.Access == dashboard.AccessRestricted:
			return state, fmt.Errorf("access restricted: %w", errOrUnknown(state.LastError))
		case !state.Loading:
			if state.LastError != nil {
				s.logger.Warn("showing partial data", "error", state.LastError)
			}
			return state, nil
		}

		select {
		case <-updates:
		case <-timeout.C:
			return state, fmt.Errorf("no snapshot within %s", s.params.LoadTimeout)
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

func errOrUnknown(err error) error {
	if err == nil {
		return errors.New("no detail available")
	}
	return err
}
