package node

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"ledgerd/blockchain"
	"ledgerd/blockchain/mining"
	"ledgerd/logger"
	"ledgerd/p2p"
)

const DefaultHTTPAddr = "0.0.0.0:5000"

// Config holds all configuration for a full node
type Config struct {
	HTTPAddr string
	NodeID   string

	Difficulty    string
	Reward        uint64
	MaxSearchTime time.Duration
	MineInterval  time.Duration

	Peers              []string
	SyncInterval       time.Duration
	PeerTimeout        time.Duration
	ResolveParallelism int

	LogLevel  string
	LogFormat string
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:           DefaultHTTPAddr,
		Difficulty:         blockchain.DefaultTarget,
		Reward:             mining.DefaultReward,
		PeerTimeout:        p2p.DefaultPeerTimeout,
		ResolveParallelism: p2p.DefaultParallelism,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// NewNodeID returns a random identifier: a UUIDv4 without dashes.
func NewNodeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if _, _, err := net.SplitHostPort(c.HTTPAddr); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("http address %q: %w", c.HTTPAddr, err))
	}
	if strings.TrimSpace(c.NodeID) == "" {
		errs = multierror.Append(errs, errors.New("node id is empty"))
	}
	if _, err := blockchain.ParseDifficulty(c.Difficulty); err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, p := range c.Peers {
		if _, err := p2p.NormalizeAddress(p); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("peer %q: %w", p, err))
		}
	}
	if c.SyncInterval < 0 || c.MineInterval < 0 || c.MaxSearchTime < 0 {
		errs = multierror.Append(errs, errors.New("intervals must not be negative"))
	}
	if c.PeerTimeout <= 0 {
		errs = multierror.Append(errs, errors.New("peer timeout must be positive"))
	}
	if c.ResolveParallelism < 1 {
		errs = multierror.Append(errs, errors.New("resolve parallelism must be at least 1"))
	}
	if !logger.ValidLevel(c.LogLevel) {
		errs = multierror.Append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errs.ErrorOrNil()
}
