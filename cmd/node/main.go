// Command node runs a Logos block-cache-and-validation-pipeline node:
// it accepts Request/Micro/Epoch Blocks from the network or from a
// local consensus process, validates and commits them through the
// write queue, and bootstraps a fresh or lagging store from peers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/blockcache"
	"github.com/logos-network/blockcore/bootstrap"
	"github.com/logos-network/blockcore/config"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/events"
	"github.com/logos-network/blockcore/executor"
	"github.com/logos-network/blockcore/notify"
	"github.com/logos-network/blockcore/pending"
	"github.com/logos-network/blockcore/storage"
	"github.com/logos-network/blockcore/writequeue"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	validatorPub := flag.String("validator-pub", "", "hex ed25519 public key used to verify incoming aggregate signatures (empty: accept-all, development only)")
	flag.Parse()

	undo, err := maxprocs.Set(maxprocs.Logger(log.Printf))
	if err != nil {
		log.Printf("maxprocs: %v", err)
	}
	defer undo()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir+"/chain", cfg.LMDBMaxDBs)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	store := storage.NewStore(db)

	if needed, err := config.NeedsGenesis(store); err != nil {
		log.Fatalf("check genesis: %v", err)
	} else if needed && len(cfg.Genesis.Delegates) > 0 {
		eb, err := config.BuildGenesisEpochBlock(cfg.Genesis)
		if err != nil {
			log.Fatalf("genesis: %v", err)
		}
		tx := store.Begin()
		tx.PutEpochBlock(eb)
		if err := tx.SetEpochTip(core.Tip{Sequence: 0, Digest: eb.Hash}); err != nil {
			log.Fatalf("genesis: stage epoch tip: %v", err)
		}
		if err := tx.Commit(); err != nil {
			log.Fatalf("genesis: commit: %v", err)
		}
		log.Printf("Genesis epoch block committed: %x", eb.Hash)
	}

	var verifier bcrypto.AggregateVerifier = bcrypto.AlwaysValidVerifier{}
	if *validatorPub != "" {
		pub, err := bcrypto.PubKeyFromHex(*validatorPub)
		if err != nil {
			log.Fatalf("validator-pub: %v", err)
		}
		verifier = bcrypto.Ed25519Verifier{Pub: pub}
	} else {
		log.Println("WARNING: no --validator-pub set, accepting all aggregate signatures (development mode)")
	}

	ioThreads := cfg.IOThreads
	if ioThreads <= 0 {
		ioThreads = runtime.GOMAXPROCS(0)
		if ioThreads < 4 {
			ioThreads = 4
		}
	}
	exec := executor.New(ioThreads)
	defer exec.Close()

	emitter := events.NewEmitter()
	if cfg.CallbackAddress != "" {
		sink := notify.NewSink(cfg.CallbackAddress, cfg.CallbackPort, cfg.CallbackTarget)
		sink.Subscribe(emitter)
		log.Printf("Commit callback enabled: %s:%d%s", cfg.CallbackAddress, cfg.CallbackPort, cfg.CallbackTarget)
	}

	queue := writequeue.New(store, verifier, exec)
	queue.SetEmitter(emitter)
	queue.Start()
	defer queue.Stop()

	container := pending.New()
	cache := blockcache.New(container, queue, exec)

	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS enabled for bootstrap connections")
	}

	peeringAddr := fmt.Sprintf(":%d", cfg.PeeringPort)
	listener, err := net.Listen("tcp", peeringAddr)
	if err != nil {
		log.Fatalf("peering listen: %v", err)
	}
	defer listener.Close()

	server := bootstrap.NewServer(listener, store, cache)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := server.Serve(ctx); err != nil {
			log.Printf("bootstrap server: %v", err)
		}
	}()
	log.Printf("Bootstrap listener on %s", peeringAddr)

	if len(cfg.SeedPeers) > 0 {
		var peers []string
		for _, sp := range cfg.SeedPeers {
			peers = append(peers, sp.Addr)
		}
		attempt := bootstrap.New(bootstrap.Config{
			BootstrapConnections:    cfg.BootstrapConnections,
			BootstrapConnectionsMax: cfg.BootstrapConnectionsMax,
			TLSConfig:               tlsCfg,
		}, cache, store)
		go func() {
			if err := attempt.Run(ctx, peers); err != nil {
				log.Printf("bootstrap run: %v", err)
			} else {
				log.Println("Bootstrap complete")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	cancel()

	// Deferred calls run in LIFO: listener.Close → queue.Stop →
	// exec.Close → db.Close.
	log.Println("Shutdown complete.")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
