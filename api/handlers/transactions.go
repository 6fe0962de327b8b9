package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"ledgerd/blockchain"
	"ledgerd/blockchain/store"
	"ledgerd/logger"
	"ledgerd/observability"
)

// newTransferRequest uses pointers so absent fields can be told apart from
// zero values.
type newTransferRequest struct {
	Sender    *string `json:"sender"`
	Recipient *string `json:"recipient"`
	Amount    *uint64 `json:"amount"`
}

func (req *newTransferRequest) transfer() (blockchain.Transfer, error) {
	switch {
	case req.Sender == nil:
		return blockchain.Transfer{}, &blockchain.ClientInputError{Field: "sender", Reason: "missing"}
	case req.Recipient == nil:
		return blockchain.Transfer{}, &blockchain.ClientInputError{Field: "recipient", Reason: "missing"}
	case req.Amount == nil:
		return blockchain.Transfer{}, &blockchain.ClientInputError{Field: "amount", Reason: "missing"}
	}
	tx := blockchain.Transfer{Sender: *req.Sender, Recipient: *req.Recipient, Amount: *req.Amount}
	return tx, blockchain.ValidateTransfer(tx)
}

// HandleNewTransaction buffers a transfer for the next block.
func HandleNewTransaction(w http.ResponseWriter, r *http.Request, store store.ChainStore, metrics *observability.Metrics, log zerolog.Logger) {
	var req newTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().Err(err).Msg("undecodable transfer")
		http.Error(w, "missing values", http.StatusBadRequest)
		return
	}

	tx, err := req.transfer()
	if err != nil {
		log.Debug().Err(err).Msg("transfer rejected")
		http.Error(w, "missing values", http.StatusBadRequest)
		return
	}

	index, err := store.SubmitTransfer(tx)
	if err != nil {
		var cie *blockchain.ClientInputError
		if errors.As(err, &cie) {
			http.Error(w, "missing values", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("submitting transfer")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.TransferSubmitted()
	log.Debug().Uint64(logger.IndexKey, index).Str("sender", tx.Sender).Msg("transfer buffered")
	writeJSON(w, http.StatusCreated, MessageResponse{
		Message: fmt.Sprintf("transaction will be added to block %d", index),
	})
}
