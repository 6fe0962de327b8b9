package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerd/logger"
	"ledgerd/node"
)

const (
	keyHTTP               = "http"
	keyNodeID             = "node-id"
	keyDifficulty         = "difficulty"
	keyReward             = "reward"
	keyPeers              = "peers"
	keySyncInterval       = "sync-interval"
	keyMineInterval       = "mine-interval"
	keyPeerTimeout        = "peer-timeout"
	keyResolveParallelism = "resolve-parallelism"
	keyMaxSearchTime      = "max-search-time"
	keyLogLevel           = "log-level"
	keyLogFormat          = "log-format"
)

func newRunCmd() *cobra.Command {
	cfg := node.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Starts a ledger node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd, &cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.HTTPAddr, keyHTTP, cfg.HTTPAddr, "address the HTTP API listens on")
	f.StringVar(&cfg.NodeID, keyNodeID, "", "node identifier credited with mining rewards (default random)")
	f.StringVar(&cfg.Difficulty, keyDifficulty, cfg.Difficulty, "hex prefix a proof hash must start with")
	f.Uint64Var(&cfg.Reward, keyReward, cfg.Reward, "amount paid to this node per mined block")
	f.StringSliceVar(&cfg.Peers, keyPeers, nil, "comma separated peer addresses")
	f.DurationVar(&cfg.SyncInterval, keySyncInterval, 0, "interval between automatic resolution rounds (0 disables)")
	f.DurationVar(&cfg.MineInterval, keyMineInterval, 0, "interval between automatic mining (0 disables)")
	f.DurationVar(&cfg.PeerTimeout, keyPeerTimeout, cfg.PeerTimeout, "timeout for fetching one peer's chain")
	f.IntVar(&cfg.ResolveParallelism, keyResolveParallelism, cfg.ResolveParallelism, "peers fetched concurrently during resolution")
	f.DurationVar(&cfg.MaxSearchTime, keyMaxSearchTime, 0, "upper bound for one proof search (0 is unbounded)")
	f.StringVar(&cfg.LogLevel, keyLogLevel, cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&cfg.LogFormat, keyLogFormat, cfg.LogFormat, "log format: json or text")
	return cmd
}

func runNode(cmd *cobra.Command, cfg *node.Config) error {
	if cfg.NodeID == "" {
		cfg.NodeID = node.NewNodeID()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.OutOrStdout(),
	})

	n, err := node.NewFullNode(*cfg, log)
	if err != nil {
		return err
	}
	return n.Run(cmd.Context())
}
