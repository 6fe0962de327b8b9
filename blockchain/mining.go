package blockchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// cancelCheckInterval is how many candidates FindProof tries between
// context checks.
const cancelCheckInterval = 1 << 12

// Engine searches for and verifies proofs linking two consecutive blocks.
type Engine struct {
	difficulty Difficulty
}

func NewEngine(difficulty Difficulty) *Engine {
	return &Engine{difficulty: difficulty}
}

func (e *Engine) Difficulty() Difficulty { return e.difficulty }

// ValidProof reports whether sha256(lastProof||proof), both rendered in
// decimal, starts with the configured target.
func (e *Engine) ValidProof(lastProof, proof uint64) bool {
	guess := make([]byte, 0, 40)
	guess = strconv.AppendUint(guess, lastProof, 10)
	guess = strconv.AppendUint(guess, proof, 10)
	sum := sha256.Sum256(guess)
	return strings.HasPrefix(hex.EncodeToString(sum[:]), e.difficulty.Target)
}

// FindProof returns the smallest proof that is valid after lastProof. The
// search has no upper bound and stops early only when ctx is cancelled.
func (e *Engine) FindProof(ctx context.Context, lastProof uint64) (uint64, error) {
	for proof := uint64(0); ; proof++ {
		if proof%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if e.ValidProof(lastProof, proof) {
			return proof, nil
		}
	}
}
