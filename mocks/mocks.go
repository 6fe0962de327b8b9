// Package mocks holds chain builders and fake peers shared by package tests.
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerd/blockchain"
)

// GenesisTime is the seeding time used by BuildChain so that chains built in
// one test share their first block.
var GenesisTime = time.Unix(1700000000, 0)

// BuildChain returns a valid chain of length blocks, genesis included. Each
// mined block carries one transfer tagged with tag.
func BuildChain(tb testing.TB, engine *blockchain.Engine, length int, tag string) []blockchain.Block {
	tb.Helper()
	require.GreaterOrEqual(tb, length, 1)
	chain := []blockchain.Block{blockchain.NewGenesisBlock(GenesisTime)}
	return ExtendChain(tb, engine, chain, length-1, tag)
}

// ExtendChain mines n more blocks on a copy of chain.
func ExtendChain(tb testing.TB, engine *blockchain.Engine, chain []blockchain.Block, n int, tag string) []blockchain.Block {
	tb.Helper()
	out := blockchain.CloneChain(chain)
	for i := 0; i < n; i++ {
		tip := out[len(out)-1]
		proof, err := engine.FindProof(context.Background(), tip.Proof)
		require.NoError(tb, err)
		out = append(out, blockchain.NewBlock(blockchain.BlockCreationParams{
			Index:        tip.Index + 1,
			PreviousHash: blockchain.HashBlock(&tip),
			Proof:        proof,
			Transactions: []blockchain.Transfer{{
				Sender:    fmt.Sprintf("%s-%d", tag, tip.Index),
				Recipient: "recipient",
				Amount:    tip.Index,
			}},
			Timestamp: GenesisTime.Add(time.Duration(tip.Index) * time.Second),
		}))
	}
	return out
}

// Corrupt returns a copy of chain whose block at position i no longer links
// to its predecessor.
func Corrupt(chain []blockchain.Block, i int) []blockchain.Block {
	out := blockchain.CloneChain(chain)
	if strings.HasPrefix(out[i].PreviousHash, "0") {
		out[i].PreviousHash = "f" + out[i].PreviousHash[1:]
	} else {
		out[i].PreviousHash = "0" + out[i].PreviousHash[1:]
	}
	return out
}

func Response(chain []blockchain.Block) *blockchain.ChainResponse {
	return &blockchain.ChainResponse{Chain: chain, Length: len(chain)}
}

// StaticFetcher answers chain fetches from fixed tables. Unknown peers are
// unreachable. A peer listed in Delays blocks for that long or until the
// request context is done.
type StaticFetcher struct {
	Chains map[string]*blockchain.ChainResponse
	Errs   map[string]error
	Delays map[string]time.Duration

	mu    sync.Mutex
	calls map[string]int
}

func (f *StaticFetcher) FetchChain(ctx context.Context, peer string) (*blockchain.ChainResponse, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[peer]++
	f.mu.Unlock()

	if d, ok := f.Delays[peer]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, &blockchain.PeerUnreachableError{Peer: peer, Err: ctx.Err()}
		}
	}
	if err, ok := f.Errs[peer]; ok {
		return nil, &blockchain.PeerUnreachableError{Peer: peer, Err: err}
	}
	resp, ok := f.Chains[peer]
	if !ok {
		return nil, &blockchain.PeerUnreachableError{Peer: peer, Err: fmt.Errorf("no such peer")}
	}
	out := *resp
	out.Chain = blockchain.CloneChain(resp.Chain)
	return &out, nil
}

func (f *StaticFetcher) Calls(peer string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[peer]
}

// ServeChain starts an HTTP peer answering GET /chain with resp. The server
// is closed when the test ends.
func ServeChain(tb testing.TB, resp *blockchain.ChainResponse) *httptest.Server {
	tb.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/chain" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	tb.Cleanup(srv.Close)
	return srv
}

// Authority strips the scheme from a test server URL.
func Authority(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}
