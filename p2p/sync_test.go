package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerd/blockchain"
	"ledgerd/logger"
	"ledgerd/mocks"
)

func TestSyncer_AdoptsPeerChainPeriodically(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 1, "local")
	remote := mocks.BuildChain(t, testEngine, 4, "remote")
	fetcher := &mocks.StaticFetcher{Chains: map[string]*blockchain.ChainResponse{
		"peer-a:5000": mocks.Response(remote),
	}}
	r, cs := newTestResolver(t, local, fetcher, "peer-a:5000")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	s := NewSyncer(r, r.peers, 10*time.Millisecond, logger.Nop())
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return cs.Length() == 4 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestSyncer_DisabledWaitsForCancel(t *testing.T) {
	fetcher := &mocks.StaticFetcher{}
	r, _ := newTestResolver(t, mocks.BuildChain(t, testEngine, 1, "local"), fetcher, "peer-a:5000")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, NewSyncer(r, r.peers, 0, logger.Nop()).Run(ctx))
	require.Zero(t, fetcher.Calls("peer-a:5000"))
}
