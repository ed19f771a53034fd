// Package main provides swapengined, the cross-chain atomic swap
// engine daemon: it owns in-flight swaps' state machines, persists
// them, and relays counter-party messages. It does not run a P2P node,
// match orders, or custody keys; those remain external collaborators.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atomex-go/swapengine/internal/backend"
	"github.com/atomex-go/swapengine/internal/chain"
	"github.com/atomex-go/swapengine/internal/config"
	"github.com/atomex-go/swapengine/internal/message"
	"github.com/atomex-go/swapengine/internal/signer"
	"github.com/atomex-go/swapengine/internal/storage"
	"github.com/atomex-go/swapengine/internal/swapfsm"
	"github.com/atomex-go/swapengine/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.swapengine", "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/swapengine.yaml)")
		relayURL    = flag.String("relay", "", "Matchmaker relay websocket URL, overrides config")
		testnet     = flag.Bool("testnet", false, "Run on testnet (separate network and data)")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: *logLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("swapengined %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	effectiveDataDir := *dataDir
	if *testnet {
		effectiveDataDir = filepath.Join(*dataDir, "testnet")
	}

	configDir := effectiveDataDir
	if *configFile != "" {
		configDir = filepath.Dir(*configFile)
	}
	cfg, err := config.LoadDaemonConfig(configDir)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	if *testnet {
		cfg.Network = config.Testnet
	}
	if *relayURL != "" {
		cfg.RelayURL = *relayURL
	}

	log = logging.New(&logging.Config{Level: cfg.LogLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)
	log.Info("Config loaded", "path", config.DaemonConfigPath(configDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataPath := config.ExpandPath(effectiveDataDir)
	store, err := storage.New(&storage.Config{DataDir: dataPath})
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", dataPath)

	network := chain.Mainnet
	if cfg.Network == config.Testnet {
		network = chain.Testnet
	}
	backendRegistry := backend.NewDefaultRegistry(network)
	log.Info("Backend registry initialized", "network", network, "backends", backendRegistry.List())

	// The production signer is an external wallet; InMemorySigner here
	// is only the reference implementation for local/dev use, same
	// scope as internal/signer's doc comment describes.
	_ = signer.NewInMemorySigner()

	fsmStore := storage.NewSwapFSMStore(store, cfg.Swap)
	engine := swapfsm.NewEngine(fsmStore, cfg.Swap, cfg.Watcher)
	go logEngineErrors(ctx, log, engine)

	recovered := recoverPendingSwaps(ctx, log, engine, fsmStore)
	resumeSwapWatchers(ctx, log, engine, backendRegistry, recovered)
	go runTimeoutSweep(ctx, log, fsmStore, cfg.Watcher.ForceRefundInterval)

	var relay message.Relay
	if cfg.RelayURL != "" {
		r, err := message.DialWebsocketRelay(ctx, cfg.RelayURL)
		if err != nil {
			log.Warn("Failed to connect to matchmaker relay; continuing without it", "error", err, "url", cfg.RelayURL)
		} else {
			relay = r
			defer relay.Close()
			log.Info("Connected to matchmaker relay", "url", cfg.RelayURL)
			dispatchRelayEnvelopes(ctx, log, relay, engine, recovered)
		}
	}

	printBanner(log, cfg, effectiveDataDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("Shutting down...")
	cancel()
	log.Info("Goodbye!")
}

// logEngineErrors drains the Engine's error channel (task panics and
// fatal watcher/broadcast errors) until ctx is done.
func logEngineErrors(ctx context.Context, log *logging.Logger, engine *swapfsm.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-engine.Errors:
			log.Error("Engine error", "error", err)
		}
	}
}

// recoverPendingSwaps re-registers every non-terminal swap the
// previous daemon run left persisted, so its watchers and deadlines
// pick back up after a restart instead of being silently abandoned.
// It returns the swaps that registered successfully.
func recoverPendingSwaps(ctx context.Context, log *logging.Logger, engine *swapfsm.Engine, fsmStore *storage.SwapFSMStore) []*swapfsm.Swap {
	swaps, err := fsmStore.LoadPendingSwaps()
	if err != nil {
		log.Error("Failed to load pending swaps for recovery", "error", err)
		return nil
	}
	recovered := make([]*swapfsm.Swap, 0, len(swaps))
	for _, swap := range swaps {
		if err := engine.Register(ctx, swap); err != nil {
			log.Error("Failed to recover swap", "swap_id", swap.ID, "error", err)
			continue
		}
		recovered = append(recovered, swap)
		log.Info("Recovered swap from storage", "swap_id", swap.ID, "flags", swap.Flags.String())
	}
	if len(recovered) > 0 {
		log.Info("Swap recovery complete", "count", len(recovered))
	}
	return recovered
}

// resumeSwapWatchers restarts the chain watchers each recovered swap
// still needs: confirmation tracking for a broadcast-but-unconfirmed
// payment, and spend watching over a confirmed one (the HTLC output is
// always the payment transaction's first output). Swaps on chains with
// no registered backend fall back to the persisted deadline sweep.
func resumeSwapWatchers(ctx context.Context, log *logging.Logger, engine *swapfsm.Engine, backends *backend.Registry, swaps []*swapfsm.Swap) {
	for _, s := range swaps {
		b, ok := backends.Get(s.SoldCurrency)
		if !ok || s.PaymentTxID == "" {
			continue
		}
		if s.Flags.Has(swapfsm.FlagPaymentBroadcast) && !s.Flags.Has(swapfsm.FlagPaymentConfirmed) {
			engine.WatchPaymentConfirmation(ctx, s.ID, s.PaymentTxID, b)
			log.Info("Resumed payment confirmation watcher", "swap_id", s.ID, "tx_id", s.PaymentTxID)
		}
		if s.Flags.Has(swapfsm.FlagPaymentConfirmed) && !s.Flags.Terminal() {
			engine.WatchPaymentSpend(ctx, s.ID, s.PaymentTxID, 0, b, nil)
			log.Info("Resumed payment spend watcher", "swap_id", s.ID, "tx_id", s.PaymentTxID)
		}
	}
}

// dispatchRelayEnvelopes subscribes each recovered swap to the relay
// and feeds incoming counter-party messages into the engine's
// message entry points, which enforce ordering and verification.
func dispatchRelayEnvelopes(ctx context.Context, log *logging.Logger, relay message.Relay, engine *swapfsm.Engine, swaps []*swapfsm.Swap) {
	for _, s := range swaps {
		ch, err := relay.Subscribe(ctx, s.ID)
		if err != nil {
			log.Error("Failed to subscribe swap to relay", "swap_id", s.ID, "error", err)
			continue
		}
		go func(swapID string, ch <-chan *message.Envelope) {
			for env := range ch {
				switch env.Type {
				case message.TypeSwapPayment:
					p, err := env.DecodeSwapPayment()
					if err != nil {
						log.Warn("Malformed swap payment message", "swap_id", swapID, "error", err)
						continue
					}
					if _, err := engine.ApplySwapPayment(ctx, swapID, p.PaymentTxID, p.RedeemScript, nil); err != nil {
						log.Warn("Rejected swap payment message", "swap_id", swapID, "error", err)
					}
				case message.TypeSwapSecret:
					sec, err := env.DecodeSwapSecret()
					if err != nil {
						log.Warn("Malformed swap secret message", "swap_id", swapID, "error", err)
						continue
					}
					if _, err := engine.ApplySwapSecret(ctx, swapID, sec.Secret); err != nil {
						log.Warn("Rejected swap secret message", "swap_id", swapID, "error", err)
					}
				}
			}
		}(s.ID, ch)
	}
}

// runTimeoutSweep periodically scans for swaps whose own lock_time has
// passed and still await a refund, surfacing them to the operator.
// Driving the retry from the persisted deadline, not just the
// in-memory ForceRefund loop, means a swap whose refund task never
// started still gets noticed after a restart.
func runTimeoutSweep(ctx context.Context, log *logging.Logger, fsmStore *storage.SwapFSMStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := fsmStore.SwapsPastDeadline(time.Now().UTC())
			if err != nil {
				log.Error("Timeout sweep failed", "error", err)
				continue
			}
			for _, id := range ids {
				log.Warn("Swap past its own lock_time without a terminal outcome; refund needed", "swap_id", id)
			}
		}
	}
}

func printBanner(log *logging.Logger, cfg *config.DaemonConfig, dataDir string) {
	networkLabel := "mainnet"
	if cfg.Network == config.Testnet {
		networkLabel = "TESTNET"
	}
	log.Info("")
	log.Info("=================================================")
	log.Infof("  swapengined (%s)", networkLabel)
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  Data dir: %s", config.ExpandPath(dataDir))
	log.Infof("  Relay:    %s", cfg.RelayURL)
	log.Infof("  Initiator lock time: %s | Responder lock time: %s", cfg.Swap.InitiatorLockTime, cfg.Swap.ResponderLockTime)
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
