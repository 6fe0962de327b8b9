package node

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerd/blockchain"
	"ledgerd/logger"
)

func testConfig(id string) Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.NodeID = id
	cfg.Difficulty = "00"
	cfg.PeerTimeout = 2 * time.Second
	return cfg
}

// startNode serves a node on a loopback listener until the test ends.
func startNode(t *testing.T, cfg Config) (*FullNode, string) {
	t.Helper()
	n, err := NewFullNode(cfg, logger.Nop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return n, ln.Addr().String()
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, func() error { c := testConfig("n"); return c.Validate() }())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad addr", func(c *Config) { c.HTTPAddr = "nope" }},
		{"empty node id", func(c *Config) { c.NodeID = " " }},
		{"bad difficulty", func(c *Config) { c.Difficulty = "xyz" }},
		{"bad peer", func(c *Config) { c.Peers = []string{"http://"} }},
		{"negative interval", func(c *Config) { c.SyncInterval = -time.Second }},
		{"zero peer timeout", func(c *Config) { c.PeerTimeout = 0 }},
		{"zero parallelism", func(c *Config) { c.ResolveParallelism = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig("n")
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}

	c := testConfig("")
	c.Difficulty = ""
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "2 errors occurred")
}

func TestNewNodeID(t *testing.T) {
	a, b := NewNodeID(), NewNodeID()
	require.Len(t, a, 32)
	require.NotContains(t, a, "-")
	require.NotEqual(t, a, b)
}

func TestNewFullNode(t *testing.T) {
	n, err := NewFullNode(testConfig("node-1"), logger.Nop())
	require.NoError(t, err)
	require.Equal(t, "node-1", n.NodeID())
	require.Equal(t, 1, n.Store().Length())
	require.Equal(t, "00", n.Engine().Difficulty().Target)

	genesis := n.Store().Chain()[0]
	require.EqualValues(t, 1, genesis.Index)
	require.EqualValues(t, blockchain.GenesisProof, genesis.Proof)
	require.Equal(t, blockchain.GenesisPreviousHash, genesis.PreviousHash)

	_, err = NewFullNode(Config{}, logger.Nop())
	require.Error(t, err)
}

func TestFullNode_MineOverHTTP(t *testing.T) {
	n, addr := startNode(t, testConfig("miner-node"))

	resp, err := http.Post("http://"+addr+"/transactions/new", "application/json",
		strings.NewReader(`{"sender":"alice","recipient":"bob","amount":10}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var mined struct {
		Message      string                `json:"message"`
		Index        uint64                `json:"index"`
		Transactions []blockchain.Transfer `json:"transactions"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, "http://"+addr+"/mine", &mined))
	require.Equal(t, "new block forged", mined.Message)
	require.EqualValues(t, 2, mined.Index)
	require.Len(t, mined.Transactions, 2)
	require.Equal(t, "miner-node", mined.Transactions[1].Recipient)

	var chain blockchain.ChainResponse
	require.Equal(t, http.StatusOK, getJSON(t, "http://"+addr+"/chain", &chain))
	require.Equal(t, 2, chain.Length)
	require.NoError(t, blockchain.ValidateChain(chain.Chain, n.Engine()))
}

// Two nodes diverge; resolving on the shorter one adopts the longer chain.
func TestFullNode_LongestChainResolution(t *testing.T) {
	a, addrA := startNode(t, testConfig("node-a"))
	b, addrB := startNode(t, testConfig("node-b"))

	for i := 0; i < 4; i++ {
		_, err := a.Miner().Mine(context.Background())
		require.NoError(t, err)
	}
	_, err := b.Miner().Mine(context.Background())
	require.NoError(t, err)

	body := fmt.Sprintf(`{"nodes":["http://%s"]}`, addrA)
	resp, err := http.Post("http://"+addrB+"/nodes/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var res map[string]json.RawMessage
	require.Equal(t, http.StatusOK, getJSON(t, "http://"+addrB+"/nodes/resolve", &res))
	require.JSONEq(t, `"our chain was replaced"`, string(res["message"]))
	require.Equal(t, a.Store().Chain(), b.Store().Chain())

	// a never adopts the now equal chain of b
	_, _, err = a.Peers().AddPeer(addrB)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getJSON(t, "http://"+addrA+"/nodes/resolve", &res))
	require.JSONEq(t, `"our chain is authoritative"`, string(res["message"]))
}

func TestFullNode_PeriodicSyncAndAutoMine(t *testing.T) {
	leaderCfg := testConfig("leader")
	leaderCfg.MineInterval = 20 * time.Millisecond
	leader, addrLeader := startNode(t, leaderCfg)

	followerCfg := testConfig("follower")
	followerCfg.Peers = []string{addrLeader}
	followerCfg.SyncInterval = 20 * time.Millisecond
	follower, _ := startNode(t, followerCfg)

	require.Eventually(t, func() bool { return leader.Store().Length() >= 3 }, 10*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return follower.Store().Length() >= 3 }, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, blockchain.ValidateChain(follower.Store().Chain(), follower.Engine()))
}

func TestFullNode_RunStopsOnCancel(t *testing.T) {
	n, err := NewFullNode(testConfig("stopper"), logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("node did not stop")
	}

	_, err = n.Miner().Mine(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}
