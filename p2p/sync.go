package p2p

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ledgerd/logger"
)

// Syncer runs a resolution round against all peers on a fixed interval.
type Syncer struct {
	resolver *Resolver
	peers    *PeerManager
	interval time.Duration
	log      zerolog.Logger
}

func NewSyncer(resolver *Resolver, peers *PeerManager, interval time.Duration, log zerolog.Logger) *Syncer {
	return &Syncer{
		resolver: resolver,
		peers:    peers,
		interval: interval,
		log:      logger.Module(log, "sync"),
	}
}

// Run blocks until ctx is done. A non-positive interval disables the loop.
func (s *Syncer) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	s.log.Info().Dur("interval", s.interval).Msg("periodic sync started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

func (s *Syncer) syncOnce(ctx context.Context) {
	if s.peers.Count() == 0 {
		return
	}
	res, err := s.resolver.Resolve(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("sync round failed")
		}
		return
	}
	s.log.Debug().
		Bool("adopted", res.Adopted).
		Int("length", len(res.Chain)).
		Msg("sync round done")
}
