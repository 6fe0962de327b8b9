package blockchain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyChain is returned when the tip is requested before genesis seeding.
	ErrEmptyChain = errors.New("chain is empty")

	// ErrStaleTip is returned when a block is sealed against a tip that is no
	// longer the last block of the chain.
	ErrStaleTip = errors.New("chain tip changed")
)

// ClientInputError rejects a single request with missing or malformed fields.
type ClientInputError struct {
	Field  string
	Reason string
}

func (e *ClientInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}

// InvalidChainError reports the first block of a candidate chain that breaks
// hash linkage, index continuity or the proof predicate.
type InvalidChainError struct {
	Index  uint64
	Reason string
}

func (e *InvalidChainError) Error() string {
	return fmt.Sprintf("invalid chain at block %d: %s", e.Index, e.Reason)
}

// PeerUnreachableError wraps a failure to fetch a chain from a peer.
type PeerUnreachableError struct {
	Peer string
	Err  error
}

func (e *PeerUnreachableError) Error() string {
	return fmt.Sprintf("peer %s unreachable: %v", e.Peer, e.Err)
}

func (e *PeerUnreachableError) Unwrap() error { return e.Err }
