// Package peerd wires a peer's configuration, identity, storage
// backend, libp2p host and pubsub, the sync engine, and the admin HTTP
// surface into a running process, mirroring the teacher's
// internal/server.App (internal/server/app.go).
package peerd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"

	"github.com/meshlog/oplogsync/internal/api"
	"github.com/meshlog/oplogsync/internal/config"
	"github.com/meshlog/oplogsync/internal/dialect"
	"github.com/meshlog/oplogsync/internal/directchannel"
	"github.com/meshlog/oplogsync/internal/logging"
	"github.com/meshlog/oplogsync/internal/oplog"
	"github.com/meshlog/oplogsync/internal/oplog/codec"
	"github.com/meshlog/oplogsync/internal/oplog/identity"
	"github.com/meshlog/oplogsync/internal/oplog/manifest"
	"github.com/meshlog/oplogsync/internal/storage/accesscontroller"
	"github.com/meshlog/oplogsync/internal/storage/blockstore"
	syncengine "github.com/meshlog/oplogsync/internal/sync"
	"github.com/meshlog/oplogsync/internal/transport/libp2ppubsub"
	"github.com/meshlog/oplogsync/internal/transport/libp2pstream"
)

// App is a running peer: a libp2p host, a block store, an oplog, a
// sync engine and an admin HTTP server.
type App struct {
	config *config.Config
	logger logging.Logger

	host     host.Host
	provider identity.Provider
	engine   *syncengine.Engine
	admin    *http.Server
}

// New builds an App from cfg. identityPassphrase unlocks (or, if no
// key file exists yet, creates) the peer's signing key at
// cfg.IdentityKeyPath.
func New(ctx context.Context, cfg *config.Config, identityPassphrase []byte) (*App, error) {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	provider, err := loadOrGenerateIdentity(cfg.IdentityKeyPath, identityPassphrase)
	if err != nil {
		return nil, fmt.Errorf("peerd: identity: %w", err)
	}

	store, err := newBlockStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("peerd: storage: %w", err)
	}

	c := codec.NewIPLDCBORCodec()
	d := dialect.V2

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddrs...))
	if err != nil {
		return nil, fmt.Errorf("peerd: libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("peerd: gossipsub: %w", err)
	}

	channel := directchannel.New(libp2pstream.New(h), logger)
	log := oplog.New(cfg.LogID, store, c, d)

	engine := syncengine.New(log, libp2ppubsub.New(ps), channel, c, d, logger,
		syncengine.WithDialTimeout(cfg.HandshakeTimeout))

	var access *accesscontroller.Controller
	if cfg.AccessControllerSecretKey != "" {
		access = accesscontroller.New([]byte(cfg.AccessControllerSecretKey))
	}

	admin := &http.Server{
		Addr: cfg.AdminHTTPAddr,
		Handler: api.New(engine, manifest.Loader{Codec: c, Store: store}, access, logger,
			logging.Environment{Service: "oplogpeerd", PeerID: h.ID().String()}).Handler(),
	}

	return &App{config: cfg, logger: logger, host: h, provider: provider, engine: engine, admin: admin}, nil
}

func newBlockStore(ctx context.Context, cfg *config.Config) (oplog.BlockStore, error) {
	switch cfg.StorageBackend {
	case "", "memory":
		return blockstore.NewMemoryStore(), nil
	case "postgres":
		return blockstore.NewPostgresStore(ctx, cfg.PostgresDSN)
	case "s3":
		return blockstore.NewS3Store(ctx, blockstore.S3Config{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
		})
	default:
		return nil, fmt.Errorf("peerd: unknown storage backend %q", cfg.StorageBackend)
	}
}

func loadOrGenerateIdentity(path string, passphrase []byte) (identity.Provider, error) {
	if _, err := os.Stat(path); err == nil {
		priv, err := identity.LoadEncrypted(path, passphrase)
		if err != nil {
			return nil, err
		}
		return identity.NewEd25519Provider(priv)
	}

	provider, err := identity.GenerateEd25519Provider()
	if err != nil {
		return nil, err
	}
	if err := identity.SaveEncrypted(path, provider.PrivateKey(), passphrase); err != nil {
		return nil, err
	}
	return provider, nil
}

func (app *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigs
		cancel()
	}()
}

// Run starts the sync engine, logs each configured bootstrap peer
// address (it does not dial them), and serves the admin HTTP surface until ctx is canceled or a shutdown signal
// arrives, then shuts everything down in reverse order.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.initSignalHandler(cancel)

	app.logger.Info(ctx, "starting peer", "peer_id", app.host.ID().String(), "log_id", app.config.LogID)

	if err := app.engine.Start(ctx); err != nil {
		return fmt.Errorf("peerd: start sync engine: %w", err)
	}

	for _, p := range app.config.BootstrapPeers {
		app.logger.Info(ctx, "bootstrapping peer", "addr", p)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error(ctx, "admin server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = app.admin.Shutdown(shutdownCtx)
	_ = app.engine.Stop(shutdownCtx)
	_ = app.host.Close()

	wg.Wait()
	app.logger.Info(context.Background(), "peer stopped")
	return nil
}
