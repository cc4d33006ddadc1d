package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/dropset-labs/dropset/params"
	"github.com/dropset-labs/dropset/pkg/abci"
	"github.com/dropset-labs/dropset/pkg/api"
	"github.com/dropset-labs/dropset/pkg/app/matching"
	"github.com/dropset-labs/dropset/pkg/consensus"
	"github.com/dropset-labs/dropset/pkg/crypto"
	"github.com/dropset-labs/dropset/pkg/engine"
	"github.com/dropset-labs/dropset/pkg/host"
	"github.com/dropset-labs/dropset/pkg/market"
	"github.com/dropset-labs/dropset/pkg/mempool"
	"github.com/dropset-labs/dropset/pkg/p2p"
	"github.com/dropset-labs/dropset/pkg/storage"
	"github.com/dropset-labs/dropset/pkg/util"
	"github.com/dropset-labs/dropset/pkg/vault"
)

// mintFromSymbol derives a deterministic 32-byte mint identifier for the
// node's bootstrap market. There's no token program behind this node, so
// the mint is just a stable hash of its symbol rather than an externally
// issued address.
func mintFromSymbol(symbol string) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(symbol))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/node.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- App: matching engine over a market registry, vault and signed
	// instruction host ----
	vaultDBPath := os.Getenv("VAULT_DB_PATH")
	if vaultDBPath == "" {
		vaultDBPath = "data/vault"
	}
	vaultMgr, err := vault.NewManager(vaultDBPath)
	if err != nil {
		sugar.Fatalw("vault_init_failed", "err", err)
	}

	chainDBPath := os.Getenv("CHAIN_DB_PATH")
	if chainDBPath == "" {
		chainDBPath = "data/chain"
	}
	chainStore, err := storage.NewPebbleStore(chainDBPath)
	if err != nil {
		sugar.Fatalw("chain_store_init_failed", "err", err)
	}

	registry := market.NewRegistry()
	bootstrapParams := market.Params{
		BaseMint:   mintFromSymbol("BASE"),
		QuoteMint:  mintFromSymbol("QUOTE"),
		Bump:       1,
		NumSectors: 4096,
	}
	bootstrapData := make([]byte, market.AccountSize(bootstrapParams.NumSectors, engine.HeaderSize, engine.SectorSize))
	bootstrapEntry, err := registry.Register(bootstrapData, bootstrapParams)
	if err != nil {
		sugar.Fatalw("bootstrap_market_failed", "err", err)
	}
	sugar.Infow("bootstrap_market_registered", "address", bootstrapEntry.Address)

	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	// NOTE: withdrawals are not co-signature gated in single-node devnet;
	// pass a crypto.ThresholdSigner here to require one.
	h := host.New(registry, vaultMgr, eip712Signer, nil, logger)

	mp := mempool.NewMempool()
	app := matching.NewApp(registry, mp, h)
	// NOTE: Sample transactions removed - all instructions must be signed
	// (EIP-712). Use cmd/sign-order or a frontend wallet to generate them.

	bridge := &abci.Bridge{App: app}

	// ---- Consensus ----
	selfID := consensus.NodeID(cfg.Consensus.Validators[0])

	// Build validator set from config
	var ids []consensus.NodeID
	for _, s := range cfg.Consensus.Validators {
		ids = append(ids, consensus.NodeID(s))
	}

	// For single-node development: only use this validator
	// For multi-node: use all validators
	// TODO: Proper peer discovery & dynamic validator set
	singleNodeMode := cfg.Node.SingleNode
	if singleNodeMode {
		ids = []consensus.NodeID{selfID}
	}

	// Quorum: N validators, need 2f+1 = 2*t+1 where N=3t+1
	// For N=1: t=0, need 1 vote (single-node dev mode)
	// For N=4: t=1, need 3 votes
	// For N=7: t=2, need 5 votes
	n := len(ids)
	t := (n - 1) / 3

	state := &consensus.State{
		Q:       consensus.Quorum{N: n, T: t},
		SelfID:  selfID,
		Blocks:  make(map[consensus.Hash]consensus.Block),
		Genesis: consensus.GenesisBlock(),
	}
	safety := consensus.NewSafety(state)
	pm := consensus.NewPacemaker(
		consensus.PacemakerTimers{Ppc: cfg.Consensus.Ppc, Delta: cfg.Consensus.Delta},
		util.RealClock{},
		state,
	)

	// Network: always use libp2p (works for any number of validators)
	elec := consensus.RoundRobinElector{IDs: ids}
	var consensusSigner interface{} = crypto.DummySigner{}

	lpn, err := p2p.NewLibp2pNet(context.Background(), p2p.Libp2pConfig{
		ListenAddr: os.Getenv("LISTEN"),
		Bootstrap:  []string{},
		SelfID:     state.SelfID,
		Quorum:     state.Q,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("libp2p_init_failed", "err", err)
	}
	net := lpn

	cengine := consensus.NewEngine(state, safety, pm, bridge, net, elec, consensusSigner)
	cengine.Logger = sugar
	cengine.Store = chainStore
	cengine.MinBlockTime = cfg.Node.MinBlockTime // Apply block time throttle from config

	// Control logging verbosity via env var (default: quiet)
	if os.Getenv("VERBOSE") == "true" {
		cengine.VerboseLogging = true
		sugar.Info("verbose logging enabled")
	}

	sugar.Infow("block_time_config", "min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logging control: log every N blocks to reduce noise
	logInterval := consensus.Height(100)
	lastLoggedHeight := consensus.Height(0)

	sugar.Infow("node_starting",
		"config_validators", len(cfg.Consensus.Validators),
		"active_validators", len(ids),
		"single_node_mode", singleNodeMode,
		"quorum_need", 2*t+1)

	// ---- API Server ----
	// Start HTTP/WebSocket server for frontend
	apiServer := api.NewServer(registry, mp, vaultMgr, h)
	apiAddr := os.Getenv("API_ADDR")
	if apiAddr == "" {
		apiAddr = ":8080"
	}

	go func() {
		sugar.Infow("api_server_starting", "addr", apiAddr)
		if err := apiServer.Start(apiAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// Hook app to API server: broadcast an orderbook update for every
	// market an instruction touched in the finalized block.
	app.OnCommit = func(marketAddr [32]byte, height int64) {
		apiServer.BroadcastOrderbook(marketAddr, height)
	}

	// Start consensus engine (HotStuff Run loop)
	// Leader actively proposes, followers reactively respond
	go func() {
		if err := cengine.Run(ctx); err != nil && ctx.Err() == nil {
			sugar.Fatalw("engine_failed", "err", err)
		}
	}()

	// Progress logging loop
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			vaultMgr.Close()
			chainStore.Close()
			return
		case <-ticker.C:
			// Log progress every logInterval blocks
			if state.Height-lastLoggedHeight >= logInterval || state.Height <= 5 {
				sugar.Infow("consensus_progress",
					"height", state.Height,
					"view", state.View,
					"blocks_since_last_log", state.Height-lastLoggedHeight)
				lastLoggedHeight = state.Height
			}
		}
	}
}
