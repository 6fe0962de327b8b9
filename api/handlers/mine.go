package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"ledgerd/blockchain"
)

type Miner interface {
	Mine(ctx context.Context) (*blockchain.Block, error)
}

type MineResponse struct {
	Message      string                `json:"message"`
	Index        uint64                `json:"index"`
	Transactions []blockchain.Transfer `json:"transactions"`
	Proof        uint64                `json:"proof"`
	PreviousHash string                `json:"previous_hash"`
}

// HandleMine forges a block from the pending transfers plus the reward.
func HandleMine(w http.ResponseWriter, r *http.Request, miner Miner, log zerolog.Logger) {
	block, err := miner.Mine(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			// client went away
			return
		}
		log.Error().Err(err).Msg("mining failed")
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "mining failed: "+err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, MineResponse{
		Message:      "new block forged",
		Index:        block.Index,
		Transactions: block.Transactions,
		Proof:        block.Proof,
		PreviousHash: block.PreviousHash,
	})
}
