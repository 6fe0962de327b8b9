package mining

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"ledgerd/blockchain"
	"ledgerd/blockchain/store"
	"ledgerd/logger"
	"ledgerd/observability"
)

const DefaultReward uint64 = 1

type Config struct {
	NodeID string
	Reward uint64
	// MaxSearchTime bounds one proof search; zero means unbounded.
	MaxSearchTime time.Duration
	Metrics       *observability.Metrics
	Logger        zerolog.Logger
}

// Miner seals the pending buffer into a new block, paying itself a reward.
// Concurrent Mine calls share a single search.
type Miner struct {
	store  store.ChainStore
	engine *blockchain.Engine

	nodeID        string
	reward        uint64
	maxSearchTime time.Duration
	metrics       *observability.Metrics
	log           zerolog.Logger

	// base bounds searches started on behalf of callers; it outlives
	// individual requests.
	base   context.Context
	flight singleflight.Group
}

func NewMiner(base context.Context, cs store.ChainStore, engine *blockchain.Engine, cfg Config) (*Miner, error) {
	if cfg.NodeID == "" {
		return nil, errors.New("miner requires a node id")
	}
	return &Miner{
		store:         cs,
		engine:        engine,
		nodeID:        cfg.NodeID,
		reward:        cfg.Reward,
		maxSearchTime: cfg.MaxSearchTime,
		metrics:       cfg.Metrics,
		log:           logger.Module(cfg.Logger, "miner"),
		base:          base,
	}, nil
}

/*
Mine searches a proof for the current tip and seals the block. If another
Mine is in progress the caller joins it and receives the same block.

ctx only bounds how long the caller waits: the search itself runs until it
succeeds, the node shuts down, or MaxSearchTime elapses.
*/
func (m *Miner) Mine(ctx context.Context) (*blockchain.Block, error) {
	ch := m.flight.DoChan("mine", func() (any, error) {
		return m.mineOnce()
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		block := res.Val.(*blockchain.Block).Clone()
		return &block, nil
	}
}

func (m *Miner) searchContext() (context.Context, context.CancelFunc) {
	if m.maxSearchTime > 0 {
		return context.WithTimeout(m.base, m.maxSearchTime)
	}
	return context.WithCancel(m.base)
}

// mineOnce repeats the search until the block is sealed on the tip it was
// searched for.
func (m *Miner) mineOnce() (*blockchain.Block, error) {
	ctx, cancel := m.searchContext()
	defer cancel()

	reward := blockchain.Transfer{
		Sender:    blockchain.RewardSender,
		Recipient: m.nodeID,
		Amount:    m.reward,
	}

	for {
		tip, err := m.store.Tip()
		if err != nil {
			return nil, err
		}

		start := time.Now()
		proof, err := m.engine.FindProof(ctx, tip.Proof)
		m.metrics.ProofSearched(time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("proof search after block %d: %w", tip.Index, err)
		}

		block, err := m.store.SealBlockOnTip(blockchain.HashBlock(tip), proof, reward)
		if errors.Is(err, blockchain.ErrStaleTip) {
			m.metrics.StaleTipRetry()
			m.log.Debug().Uint64(logger.IndexKey, tip.Index).Msg("tip moved during search, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		m.metrics.BlockSealed(int(block.Index))
		m.log.Info().
			Uint64(logger.IndexKey, block.Index).
			Uint64("proof", block.Proof).
			Int("transactions", len(block.Transactions)).
			Dur("took", time.Since(start)).
			Msg("block forged")
		return block, nil
	}
}

// Run mines a block every interval until ctx is done. A non-positive
// interval disables the loop.
func (m *Miner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Mine(ctx); err != nil && ctx.Err() == nil {
				m.log.Error().Err(err).Msg("auto-mine failed")
			}
		}
	}
}
