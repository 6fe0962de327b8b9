package node

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ledgerd/api"
	"ledgerd/blockchain"
	"ledgerd/blockchain/mining"
	"ledgerd/blockchain/store"
	"ledgerd/logger"
	"ledgerd/observability"
	"ledgerd/p2p"
)

// FullNode wires the ledger, the miner, the peer set and the HTTP API of a
// single participant.
type FullNode struct {
	config Config
	log    zerolog.Logger

	store    *store.MemoryChainStore
	engine   *blockchain.Engine
	metrics  *observability.Metrics
	miner    *mining.Miner
	peers    *p2p.PeerManager
	resolver *p2p.Resolver
	syncer   *p2p.Syncer
	api      *api.Server

	// lifetime bounds proof searches; cancelled when Run returns
	lifetime context.Context
	stop     context.CancelFunc
}

// NewFullNode validates config and builds every component. The chain is
// seeded with a genesis block sealed now.
func NewFullNode(config Config, log zerolog.Logger) (*FullNode, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	difficulty, err := blockchain.ParseDifficulty(config.Difficulty)
	if err != nil {
		return nil, err
	}

	log = logger.NodeID(log, config.NodeID)
	n := &FullNode{
		config:  config,
		log:     logger.Module(log, "node"),
		store:   store.NewSeededChainStore(),
		engine:  blockchain.NewEngine(difficulty),
		metrics: observability.NewMetrics(),
	}
	n.lifetime, n.stop = context.WithCancel(context.Background())
	n.metrics.SetChainLength(n.store.Length())

	n.miner, err = mining.NewMiner(n.lifetime, n.store, n.engine, mining.Config{
		NodeID:        config.NodeID,
		Reward:        config.Reward,
		MaxSearchTime: config.MaxSearchTime,
		Metrics:       n.metrics,
		Logger:        log,
	})
	if err != nil {
		n.stop()
		return nil, err
	}

	n.peers, err = p2p.NewPeerManager(config.Peers)
	if err != nil {
		n.stop()
		return nil, err
	}

	n.resolver = p2p.NewResolver(n.store, n.peers, p2p.NewHTTPFetcher(&http.Client{}), n.engine, p2p.ResolverConfig{
		PeerTimeout: config.PeerTimeout,
		Parallelism: config.ResolveParallelism,
		Metrics:     n.metrics,
		Logger:      log,
	})
	n.syncer = p2p.NewSyncer(n.resolver, n.peers, config.SyncInterval, log)

	n.api = api.NewServer(config.HTTPAddr, api.Dependencies{
		Store:    n.store,
		Miner:    n.miner,
		Peers:    n.peers,
		Resolver: n.resolver,
		Metrics:  n.metrics,
		Logger:   log,
	})
	return n, nil
}

// Run listens on the configured address and blocks until ctx is done or a
// component fails.
func (n *FullNode) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", n.config.HTTPAddr)
	if err != nil {
		n.stop()
		return fmt.Errorf("listening on %s: %w", n.config.HTTPAddr, err)
	}
	return n.Serve(ctx, ln)
}

// Serve runs the node on an existing listener.
func (n *FullNode) Serve(ctx context.Context, ln net.Listener) error {
	defer n.stop()
	cleanup := context.AfterFunc(ctx, n.stop)
	defer cleanup()

	genesis := n.store.Chain()[0]
	n.log.Info().
		Str("addr", ln.Addr().String()).
		Str("difficulty", n.engine.Difficulty().Target).
		Int("peers", n.peers.Count()).
		Str("genesis", blockchain.HashBlock(&genesis)).
		Msg("node starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.api.Serve(gctx, ln)
	})
	g.Go(func() error {
		return n.syncer.Run(gctx)
	})
	g.Go(func() error {
		return n.miner.Run(gctx, n.config.MineInterval)
	})

	err := g.Wait()
	n.log.Info().Err(err).Msg("node stopped")
	return err
}

func (n *FullNode) NodeID() string { return n.config.NodeID }
func (n *FullNode) Store() store.ChainStore { return n.store }
func (n *FullNode) Peers() *p2p.PeerManager { return n.peers }
func (n *FullNode) Miner() *mining.Miner { return n.miner }
func (n *FullNode) Resolver() *p2p.Resolver { return n.resolver }
func (n *FullNode) Engine() *blockchain.Engine { return n.engine }
func (n *FullNode) Handler() http.Handler { return n.api.Handler() }
