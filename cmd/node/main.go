// Command node runs the driftnode daemon: DNS peer discovery, outgoing
// connections and handshakes, block-header persistence and the
// introspection HTTP server, all driven by the deterministic
// action/reducer/effects engine.
package main

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/driftnode/driftnode/config"
	"github.com/driftnode/driftnode/pkg/cryptoservice"
	"github.com/driftnode/driftnode/pkg/dnsresolver"
	"github.com/driftnode/driftnode/pkg/effects"
	"github.com/driftnode/driftnode/pkg/engine"
	"github.com/driftnode/driftnode/pkg/handshake"
	"github.com/driftnode/driftnode/pkg/introspection"
	"github.com/driftnode/driftnode/pkg/journal"
	"github.com/driftnode/driftnode/pkg/peerconn"
	"github.com/driftnode/driftnode/pkg/randomness"
	"github.com/driftnode/driftnode/pkg/reactor"
	"github.com/driftnode/driftnode/pkg/state"
	"github.com/driftnode/driftnode/pkg/storageengine"
	"github.com/driftnode/driftnode/pkg/storageworker"
	"github.com/driftnode/driftnode/pkg/store"
)

const nodeVersion = "driftnode/0.1"

const dnsLookupTimeout = 10 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "driftnode"
	app.Usage = "deterministic peer-to-peer block-header node"
	app.Version = nodeVersion
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "Path to the YAML config file"},
		cli.StringFlag{Name: "listen, l", Usage: "TCP listen address (host:port)"},
		cli.StringFlag{Name: "seed, s", Usage: "DNS seed address (host:port)"},
		cli.StringFlag{Name: "data-dir, d", Usage: "Data directory for headers and journal"},
		cli.StringFlag{Name: "http", Usage: "Introspection HTTP listen address"},
		cli.BoolFlag{Name: "debug", Usage: "Log at debug level"},
	}
	app.Action = startNode

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func startNode(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	log, err := config.NewLogger(cfg.Logger, ctx.Bool("debug"))
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.Storage.DataDirectory, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	db, err := storageengine.Open(cfg.Storage.HeadersPath)
	if err != nil {
		return fmt.Errorf("opening header store: %w", err)
	}
	defer db.Close()

	j, err := journal.Open(cfg.Storage.JournalPath)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer j.Close()

	react, err := reactor.NewPlatform()
	if err != nil {
		return fmt.Errorf("creating reactor: %w", err)
	}

	identity, err := newIdentity(cfg.P2P.ListenAddress)
	if err != nil {
		return err
	}
	identity.DisableMempool = cfg.P2P.DisableMempool
	identity.PrivateNode = cfg.P2P.PrivateNode

	crypto := cryptoservice.NewFake()
	transport := handshake.New(log, crypto, identity, react)
	dials := peerconn.New(cfg.P2P.DialTimeout, react.Signal)
	worker := storageworker.New(log, db, j, react)

	st := state.New(state.Config{
		ListenPort:       identity.Port,
		DNSSeedAddress:   cfg.P2P.DNSSeedAddress,
		MaxPeers:         cfg.P2P.MaxPeers,
		MinPeers:         cfg.P2P.MinPeers,
		AttemptConnPeers: cfg.P2P.AttemptConnPeers,
		DialTimeout:      cfg.P2P.DialTimeout,
		PingInterval:     cfg.P2P.PingInterval,
		PingTimeout:      cfg.P2P.PingTimeout,
		SnapshotInterval: cfg.Storage.SnapshotInterval,
		PrivateNode:      cfg.P2P.PrivateNode,
		DisableMempool:   cfg.P2P.DisableMempool,
		Identity: state.Identity{
			PublicKey:   identity.PublicKey,
			SecretKey:   identity.SecretKey,
			ProofOfWork: identity.ProofOfWork,
			Version:     identity.Version,
		},
	})

	dispatcher := &effects.Dispatcher{
		Log:       log,
		DNS:       dnsresolver.New(dnsLookupTimeout),
		Dial:      dials,
		Rand:      randomness.New(),
		Handshake: transport,
		Storage:   worker,
	}
	str := store.New(log, st, dispatcher, worker.StoreAction)

	// Anchor replay: the initial state is the snapshot at action 0.
	if initial, err := json.Marshal(st); err == nil {
		if err := j.PutSnapshot(0, initial); err != nil {
			log.Warn("writing initial snapshot", zap.Error(err))
		}
	}

	var publish func(*state.State)
	var intro *introspection.Server
	if cfg.Introspection.Address != "" {
		intro = introspection.New(log, cfg.Introspection.Address, j)
		publish = intro.PublishState
	}

	eng := engine.New(log, str, react, dials, transport, cfg.P2P.ListenAddress, publish)
	dispatcher.Closer = eng

	go worker.Run()
	if intro != nil {
		intro.Start()
	}

	runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		// Unblock the reactor promptly once a shutdown signal lands.
		<-runCtx.Done()
		react.Signal()
	}()

	log.Info("node starting",
		zap.String("listen", cfg.P2P.ListenAddress),
		zap.String("seed", cfg.P2P.DNSSeedAddress),
		zap.String("data", cfg.Storage.DataDirectory))

	err = eng.Run(runCtx)

	if intro != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		intro.Shutdown(shutdownCtx)
		stop()
	}
	worker.Close()

	log.Info("node stopped")
	return err
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	var cfg config.Config
	if path := ctx.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if v := ctx.String("listen"); v != "" {
		cfg.P2P.ListenAddress = v
	}
	if v := ctx.String("seed"); v != "" {
		cfg.P2P.DNSSeedAddress = v
	}
	if v := ctx.String("data-dir"); v != "" {
		cfg.Storage.DataDirectory = v
		cfg.Storage.HeadersPath = ""
		cfg.Storage.JournalPath = ""
	}
	if v := ctx.String("http"); v != "" {
		cfg.Introspection.Address = v
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newIdentity generates the node's per-run handshake material. Key
// generation is not this node's concern; the bytes only need to be
// unique per run.
func newIdentity(listenAddress string) (handshake.Identity, error) {
	_, portStr, err := net.SplitHostPort(listenAddress)
	if err != nil {
		return handshake.Identity{}, fmt.Errorf("parsing listen address: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return handshake.Identity{}, fmt.Errorf("parsing listen port: %w", err)
	}

	public := make([]byte, 32)
	secret := make([]byte, 32)
	pow := make([]byte, 24)
	for _, b := range [][]byte{public, secret, pow} {
		if _, err := cryptorand.Read(b); err != nil {
			return handshake.Identity{}, fmt.Errorf("generating identity: %w", err)
		}
	}

	return handshake.Identity{
		Port:        uint16(port),
		PublicKey:   public,
		SecretKey:   secret,
		ProofOfWork: pow,
		Version:     nodeVersion,
	}, nil
}
