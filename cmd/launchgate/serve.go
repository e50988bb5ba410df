// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/launchgate/launchgate/internal/auth"
	"github.com/launchgate/launchgate/internal/config"
	"github.com/launchgate/launchgate/internal/gateway"
	"github.com/launchgate/launchgate/internal/identity"
	identitypg "github.com/launchgate/launchgate/internal/identity/postgres"
	"github.com/launchgate/launchgate/internal/keys"
	"github.com/launchgate/launchgate/internal/limiter"
	limiterpg "github.com/launchgate/launchgate/internal/limiter/postgres"
	"github.com/launchgate/launchgate/internal/logging"
	"github.com/launchgate/launchgate/internal/observability"
	"github.com/launchgate/launchgate/internal/profile"
	"github.com/launchgate/launchgate/internal/store"
)

// shutdownTimeout bounds the graceful stop of the observability server.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication gateway",
		Long: `Start the authentication gateway: listen for launcher connections,
verify credentials through the configured provider, and serve signed
client profiles to authenticated accounts.`,
		RunE: runServe,
	}

	flags := cmd.Flags()
	flags.String("listen-addr", config.DefaultListenAddr, "gateway TCP listen address")
	flags.String("metrics-addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty disables)")
	flags.String("log-format", config.DefaultLogFormat, "log output format (json or text)")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.String("keys-dir", config.DefaultKeysDir, "directory holding the gateway RSA keypair")
	flags.String("profiles-dir", config.DefaultProfilesDir, "directory holding client profile YAML files")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath(), cmd.Flags())
	if err != nil {
		return err
	}
	logging.SetDefault("launchgate", version, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}

	pair, err := loadOrGenerateKeys(cfg.KeysDir)
	if err != nil {
		return err
	}

	provider, err := auth.NewProvider(cfg.Provider)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			slog.Warn("failed to close auth provider", "error", err)
		}
	}()

	profiles, err := profile.LoadDir(cfg.ProfilesDir, pair)
	if err != nil {
		return err
	}
	slog.Info("client profiles loaded", "dir", cfg.ProfilesDir, "count", profiles.Len())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	var (
		metrics  gateway.MetricsRecorder
		counter  gateway.ConnectionCounter
		obs      *observability.Server
		obsErrCh <-chan error
	)
	if cfg.MetricsAddr != "" {
		obs = observability.NewServer(cfg.MetricsAddr, readiness(pool))
		obsErrCh, err = obs.Start()
		if err != nil {
			return err
		}
		defer stopObservability(obs)

		metrics = &metricsAdapter{m: obs.Metrics()}
		counter = obs.Metrics().ConnectionsTotal
	}

	handler := gateway.NewHandler(gateway.HandlerConfig{
		Decryptor:    pair,
		IPs:          limiter.NewIPLimiter(cfg.Limiter),
		Provider:     provider,
		Cache:        identity.NewCache(identitypg.NewAccountRepository(pool), nil),
		Fingerprints: limiter.NewFingerprints(limiterpg.NewFingerprintRepository(pool)),
		Violations:   limiter.NewViolationLog(slog.Default()),
		Profiles:     profiles,
		Metrics:      metrics,
		Logger:       slog.Default(),
	})
	srv := gateway.NewServer(cfg.ListenAddr, handler, slog.Default(), counter)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case err := <-errCh:
		return err
	case err, ok := <-obsErrCh:
		if !ok {
			return nil
		}
		return oops.Code("OBSERVABILITY_FAILED").Wrap(err)
	}
}

// loadOrGenerateKeys loads the gateway keypair, generating and saving a
// fresh one on first boot.
func loadOrGenerateKeys(dir string) (*keys.Pair, error) {
	if keys.Exists(dir) {
		return keys.Load(dir)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.Code("KEYS_SAVE_FAILED").With("dir", dir).Wrap(err)
	}
	pair, err := keys.Generate()
	if err != nil {
		return nil, err
	}
	if err := pair.Save(dir); err != nil {
		return nil, err
	}
	slog.Info("generated new gateway keypair", "dir", dir)
	return pair, nil
}

// readiness reports ready once the database answers a ping.
func readiness(pool *pgxpool.Pool) observability.ReadinessChecker {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return pool.Ping(ctx) == nil
	}
}

func stopObservability(obs *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server", "error", err)
	}
}

// metricsAdapter maps gateway events onto the Prometheus counters. Every
// rejection also counts as a "rejected" login outcome.
type metricsAdapter struct {
	m *observability.Metrics
}

func (a *metricsAdapter) Login(outcome string) {
	a.m.LoginsTotal.WithLabelValues(outcome).Inc()
}

func (a *metricsAdapter) Rejection(stage string) {
	a.m.RejectionsTotal.WithLabelValues(stage).Inc()
	a.m.LoginsTotal.WithLabelValues("rejected").Inc()
}

var _ gateway.MetricsRecorder = (*metricsAdapter)(nil)
