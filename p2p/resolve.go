package p2p

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ledgerd/blockchain"
	"ledgerd/blockchain/store"
	"ledgerd/logger"
	"ledgerd/observability"
)

const (
	DefaultPeerTimeout = 5 * time.Second
	DefaultParallelism = 4
)

// Resolution is the outcome of one consensus round.
type Resolution struct {
	// Adopted is true when the local chain was replaced.
	Adopted bool
	// Peer is the authority whose chain was adopted.
	Peer string
	// Chain is the local chain after the round.
	Chain []blockchain.Block
	// Skipped aggregates the per-peer failures that were ignored, or nil.
	Skipped error
}

// PeerChain is one peer's answer to a chain fetch.
type PeerChain struct {
	Peer     string
	Response *blockchain.ChainResponse
	Err      error
}

// checkCandidate rejects a peer payload whose reported length disagrees with
// the chain it carries, or whose links do not validate.
func checkCandidate(resp *blockchain.ChainResponse, engine *blockchain.Engine) error {
	if resp.Length != len(resp.Chain) {
		return &blockchain.InvalidChainError{
			Index:  uint64(len(resp.Chain)),
			Reason: fmt.Sprintf("reported length %d, carried %d blocks", resp.Length, len(resp.Chain)),
		}
	}
	return blockchain.ValidateChain(resp.Chain, engine)
}

/*
ChooseChain picks the longest valid candidate strictly longer than localLen.
Candidates are considered in slice order so the first peer wins a tie.
Only candidates that would beat the current best are validated; failures
are returned aggregated and never abort the choice.
*/
func ChooseChain(localLen int, candidates []PeerChain, engine *blockchain.Engine) (best *PeerChain, skipped error) {
	bestLen := localLen
	for i := range candidates {
		c := &candidates[i]
		if c.Err != nil {
			skipped = multierror.Append(skipped, c.Err)
			continue
		}
		if c.Response == nil {
			skipped = multierror.Append(skipped, &blockchain.PeerUnreachableError{Peer: c.Peer, Err: errors.New("empty response")})
			continue
		}
		if c.Response.Length <= bestLen {
			continue
		}
		if err := checkCandidate(c.Response, engine); err != nil {
			skipped = multierror.Append(skipped, fmt.Errorf("peer %s: %w", c.Peer, err))
			continue
		}
		best = c
		bestLen = c.Response.Length
	}
	return best, skipped
}

// Resolve is the sequential form of a round: fetch every peer in order and
// return the chain a node holding local should keep.
func Resolve(ctx context.Context, local []blockchain.Block, peers []string, fetcher ChainFetcher, engine *blockchain.Engine) Resolution {
	candidates := make([]PeerChain, 0, len(peers))
	for _, p := range peers {
		resp, err := fetcher.FetchChain(ctx, p)
		candidates = append(candidates, PeerChain{Peer: p, Response: resp, Err: err})
	}

	best, skipped := ChooseChain(len(local), candidates, engine)
	res := Resolution{Chain: local, Skipped: errorOrNil(skipped)}
	if best != nil {
		res.Adopted = true
		res.Peer = best.Peer
		res.Chain = best.Response.Chain
	}
	return res
}

type ResolverConfig struct {
	PeerTimeout time.Duration
	Parallelism int
	Metrics     *observability.Metrics
	Logger      zerolog.Logger
}

// Resolver runs consensus rounds against the node's peer set.
type Resolver struct {
	store   store.ChainStore
	peers   *PeerManager
	fetcher ChainFetcher
	engine  *blockchain.Engine

	peerTimeout time.Duration
	parallelism int
	metrics     *observability.Metrics
	log         zerolog.Logger
}

func NewResolver(cs store.ChainStore, peers *PeerManager, fetcher ChainFetcher, engine *blockchain.Engine, cfg ResolverConfig) *Resolver {
	if cfg.PeerTimeout <= 0 {
		cfg.PeerTimeout = DefaultPeerTimeout
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	return &Resolver{
		store:       cs,
		peers:       peers,
		fetcher:     fetcher,
		engine:      engine,
		peerTimeout: cfg.PeerTimeout,
		parallelism: cfg.Parallelism,
		metrics:     cfg.Metrics,
		log:         logger.Module(cfg.Logger, "resolver"),
	}
}

// fetchAll queries every peer concurrently. Results keep peer order.
func (r *Resolver) fetchAll(ctx context.Context, peers []string) ([]PeerChain, error) {
	results := make([]PeerChain, len(peers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, p := range peers {
		i, p := i, p
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, r.peerTimeout)
			defer cancel()

			resp, err := r.fetcher.FetchChain(pctx, p)
			if err == nil {
				r.peers.MarkSeen(p)
			}
			results[i] = PeerChain{Peer: p, Response: resp, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

// Resolve runs one round: it replaces the local chain with the longest valid
// peer chain if that chain is strictly longer. Per-peer failures are skipped
// and reported in Resolution.Skipped; the returned error is only set when the
// round itself could not complete.
func (r *Resolver) Resolve(ctx context.Context) (Resolution, error) {
	peers := r.peers.Addresses()
	local := r.store.Length()

	results, err := r.fetchAll(ctx, peers)
	if err != nil {
		return Resolution{}, fmt.Errorf("fetching peer chains: %w", err)
	}

	for _, res := range results {
		if res.Err != nil {
			r.metrics.PeerFetchFailed("unreachable")
			plog := logger.Peer(r.log, res.Peer)
			plog.Warn().Err(res.Err).Msg("peer skipped")
		}
	}

	best, skipped := ChooseChain(local, results, r.engine)
	if skipped != nil {
		var merr *multierror.Error
		if errors.As(skipped, &merr) {
			for _, e := range merr.Errors {
				if blockchain.IsInvalidChain(e) {
					r.metrics.PeerFetchFailed("invalid")
					r.log.Warn().Err(e).Msg("candidate chain rejected")
				}
			}
		}
	}

	out := Resolution{Skipped: errorOrNil(skipped)}
	if best != nil {
		replaced, err := r.store.ReplaceChainIfLonger(best.Response.Chain)
		if err != nil {
			return Resolution{}, fmt.Errorf("replacing chain: %w", err)
		}
		if replaced {
			out.Adopted = true
			out.Peer = best.Peer
			r.metrics.ChainReplaced(len(best.Response.Chain))
			plog := logger.Peer(r.log, best.Peer)
			plog.Info().
				Int("length", len(best.Response.Chain)).
				Int("previous_length", local).
				Msg("chain replaced")
		} else {
			r.log.Debug().Str(logger.PeerKey, best.Peer).Msg("local chain grew during round, candidate dropped")
		}
	}
	out.Chain = r.store.Chain()
	return out, nil
}

func errorOrNil(err error) error {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return merr.ErrorOrNil()
	}
	return err
}
