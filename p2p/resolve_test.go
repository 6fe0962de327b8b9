package p2p

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/blockchain"
	"ledgerd/blockchain/store"
	"ledgerd/logger"
	"ledgerd/mocks"
	"ledgerd/observability"
)

var testEngine = blockchain.NewEngine(blockchain.Difficulty{Target: "0"})

func newTestResolver(t *testing.T, local []blockchain.Block, fetcher ChainFetcher, peers ...string) (*Resolver, *store.MemoryChainStore) {
	t.Helper()
	cs := store.NewMemoryChainStore()
	require.NoError(t, cs.ReplaceChain(local))

	pm, err := NewPeerManager(peers)
	require.NoError(t, err)

	r := NewResolver(cs, pm, fetcher, testEngine, ResolverConfig{
		PeerTimeout: time.Second,
		Parallelism: 2,
		Metrics:     observability.NewMetrics(),
		Logger:      logger.Nop(),
	})
	return r, cs
}

func TestResolver_AdoptsLongerValidChain(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 3, "local")
	remote := mocks.BuildChain(t, testEngine, 5, "remote")

	fetcher := &mocks.StaticFetcher{Chains: map[string]*blockchain.ChainResponse{
		"peer-a:5000": mocks.Response(remote),
	}}
	r, cs := newTestResolver(t, local, fetcher, "peer-a:5000")

	res, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.True(t, res.Adopted)
	require.Equal(t, "peer-a:5000", res.Peer)
	require.NoError(t, res.Skipped)
	require.Equal(t, remote, res.Chain)
	require.Equal(t, remote, cs.Chain())

	p, ok := r.peers.lookup("peer-a:5000")
	require.True(t, ok)
	require.False(t, p.LastSeen.IsZero())
}

func TestResolver_RejectsInvalidLongerChain(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 3, "local")
	remote := mocks.Corrupt(mocks.BuildChain(t, testEngine, 5, "remote"), 3)

	fetcher := &mocks.StaticFetcher{Chains: map[string]*blockchain.ChainResponse{
		"peer-a:5000": mocks.Response(remote),
	}}
	r, cs := newTestResolver(t, local, fetcher, "peer-a:5000")

	res, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.False(t, res.Adopted)
	require.Equal(t, local, cs.Chain())
	require.Equal(t, local, res.Chain)

	var ice *blockchain.InvalidChainError
	require.ErrorAs(t, res.Skipped, &ice)
	require.EqualValues(t, 4, ice.Index)
}

func TestResolver_RejectsChainWithoutGenesis(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 3, "local")
	full := mocks.BuildChain(t, testEngine, 6, "remote")
	headless := blockchain.CloneChain(full[1:])

	fetcher := &mocks.StaticFetcher{Chains: map[string]*blockchain.ChainResponse{
		"peer-a:5000": mocks.Response(headless),
	}}
	r, cs := newTestResolver(t, local, fetcher, "peer-a:5000")

	res, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.False(t, res.Adopted)
	require.Equal(t, local, cs.Chain())

	var ice *blockchain.InvalidChainError
	require.ErrorAs(t, res.Skipped, &ice)
	require.EqualValues(t, 2, ice.Index)

	// the kept chain still extends cleanly
	tip, err := cs.Tip()
	require.NoError(t, err)
	proof, err := testEngine.FindProof(context.Background(), tip.Proof)
	require.NoError(t, err)
	block, err := cs.SealBlock(proof, "")
	require.NoError(t, err)
	require.EqualValues(t, 4, block.Index)
	require.NoError(t, blockchain.ValidateChain(cs.Chain(), testEngine))
}

func TestResolver_KeepsLocalOnTie(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 3, "local")
	remote := mocks.BuildChain(t, testEngine, 3, "remote")
	require.NotEqual(t, local, remote)

	fetcher := &mocks.StaticFetcher{Chains: map[string]*blockchain.ChainResponse{
		"peer-a:5000": mocks.Response(remote),
	}}
	r, cs := newTestResolver(t, local, fetcher, "peer-a:5000")

	res, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.False(t, res.Adopted)
	require.NoError(t, res.Skipped)
	require.Equal(t, local, cs.Chain())
}

func TestResolver_SkipsUnreachablePeers(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 2, "local")
	remote := mocks.BuildChain(t, testEngine, 4, "remote")

	fetcher := &mocks.StaticFetcher{
		Chains: map[string]*blockchain.ChainResponse{"peer-b:5000": mocks.Response(remote)},
		Errs:   map[string]error{"peer-a:5000": errors.New("connection refused")},
	}
	r, cs := newTestResolver(t, local, fetcher, "peer-a:5000", "peer-b:5000", "peer-c:5000")

	res, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.True(t, res.Adopted)
	require.Equal(t, "peer-b:5000", res.Peer)
	require.Equal(t, 4, cs.Length())

	var pue *blockchain.PeerUnreachableError
	require.ErrorAs(t, res.Skipped, &pue)
	require.Contains(t, res.Skipped.Error(), "peer-a:5000")
	require.Contains(t, res.Skipped.Error(), "peer-c:5000")
}

func TestResolver_SlowPeerTimesOut(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 2, "local")
	remote := mocks.BuildChain(t, testEngine, 4, "remote")
	slow := mocks.BuildChain(t, testEngine, 6, "slow")

	fetcher := &mocks.StaticFetcher{
		Chains: map[string]*blockchain.ChainResponse{
			"slow:5000":   mocks.Response(slow),
			"peer-b:5000": mocks.Response(remote),
		},
		Delays: map[string]time.Duration{"slow:5000": time.Minute},
	}
	r, cs := newTestResolver(t, local, fetcher, "slow:5000", "peer-b:5000")
	r.peerTimeout = 50 * time.Millisecond

	start := time.Now()
	res, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Less(t, time.Since(start), 10*time.Second)
	require.True(t, res.Adopted)
	require.Equal(t, "peer-b:5000", res.Peer)
	require.Equal(t, 4, cs.Length())

	var pue *blockchain.PeerUnreachableError
	require.ErrorAs(t, res.Skipped, &pue)
	require.ErrorIs(t, res.Skipped, context.DeadlineExceeded)
}

func TestResolver_CancelledRound(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 2, "local")
	fetcher := &mocks.StaticFetcher{Delays: map[string]time.Duration{"slow:5000": time.Minute}}
	r, cs := newTestResolver(t, local, fetcher, "slow:5000")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, local, cs.Chain())
}

func TestResolver_LocalGrewDuringRound(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 3, "local")
	grown := mocks.ExtendChain(t, testEngine, local, 3, "local")
	remote := mocks.BuildChain(t, testEngine, 5, "remote")

	var cs *store.MemoryChainStore
	fetcher := FetcherFunc(func(ctx context.Context, peer string) (*blockchain.ChainResponse, error) {
		assert.NoError(t, cs.ReplaceChain(grown))
		return mocks.Response(remote), nil
	})
	r, s := newTestResolver(t, local, fetcher, "peer-a:5000")
	cs = s

	res, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.False(t, res.Adopted)
	require.Equal(t, grown, res.Chain)
	require.Equal(t, 6, cs.Length())
}

func TestChooseChain(t *testing.T) {
	five := mocks.BuildChain(t, testEngine, 5, "five")
	fiveOther := mocks.BuildChain(t, testEngine, 5, "five-other")
	six := mocks.BuildChain(t, testEngine, 6, "six")
	badSix := mocks.Corrupt(six, 2)

	tests := []struct {
		name        string
		localLen    int
		candidates  []PeerChain
		wantPeer    string
		wantSkipped int
	}{
		{
			name:     "no peers",
			localLen: 3,
		},
		{
			name:     "longest wins",
			localLen: 3,
			candidates: []PeerChain{
				{Peer: "a", Response: mocks.Response(five)},
				{Peer: "b", Response: mocks.Response(six)},
			},
			wantPeer: "b",
		},
		{
			name:     "first peer wins a tie between candidates",
			localLen: 3,
			candidates: []PeerChain{
				{Peer: "a", Response: mocks.Response(five)},
				{Peer: "b", Response: mocks.Response(fiveOther)},
			},
			wantPeer: "a",
		},
		{
			name:     "invalid longest falls back to shorter valid",
			localLen: 3,
			candidates: []PeerChain{
				{Peer: "a", Response: mocks.Response(badSix)},
				{Peer: "b", Response: mocks.Response(five)},
			},
			wantPeer:    "b",
			wantSkipped: 1,
		},
		{
			name:     "reported length must match payload",
			localLen: 3,
			candidates: []PeerChain{
				{Peer: "a", Response: &blockchain.ChainResponse{Chain: five, Length: 9}},
			},
			wantSkipped: 1,
		},
		{
			name:     "shorter chains are not validated",
			localLen: 6,
			candidates: []PeerChain{
				{Peer: "a", Response: mocks.Response(mocks.Corrupt(five, 2))},
			},
		},
		{
			name:     "fetch errors are collected",
			localLen: 1,
			candidates: []PeerChain{
				{Peer: "a", Err: &blockchain.PeerUnreachableError{Peer: "a", Err: errors.New("refused")}},
				{Peer: "b", Response: nil},
				{Peer: "c", Response: mocks.Response(five)},
			},
			wantPeer:    "c",
			wantSkipped: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, skipped := ChooseChain(tt.localLen, tt.candidates, testEngine)
			if tt.wantPeer == "" {
				require.Nil(t, best)
			} else {
				require.NotNil(t, best)
				require.Equal(t, tt.wantPeer, best.Peer)
			}

			if tt.wantSkipped == 0 {
				require.Nil(t, skipped)
				return
			}
			require.Error(t, skipped)
			require.Len(t, unwrapAll(skipped), tt.wantSkipped)
		})
	}
}

func TestResolve_Sequential(t *testing.T) {
	local := mocks.BuildChain(t, testEngine, 3, "local")
	remote := mocks.BuildChain(t, testEngine, 5, "remote")
	fetcher := &mocks.StaticFetcher{Chains: map[string]*blockchain.ChainResponse{
		"a:1": mocks.Response(mocks.BuildChain(t, testEngine, 3, "tie")),
		"b:1": mocks.Response(remote),
	}}

	res := Resolve(context.Background(), local, []string{"a:1", "b:1"}, fetcher, testEngine)
	require.True(t, res.Adopted)
	require.Equal(t, "b:1", res.Peer)
	require.Equal(t, remote, res.Chain)
	require.NoError(t, res.Skipped)
	require.Equal(t, 1, fetcher.Calls("a:1"))

	res = Resolve(context.Background(), remote, []string{"a:1"}, fetcher, testEngine)
	require.False(t, res.Adopted)
	require.Equal(t, remote, res.Chain)
}

func unwrapAll(err error) []error {
	if u, ok := err.(interface{ WrappedErrors() []error }); ok {
		return u.WrappedErrors()
	}
	return []error{err}
}
