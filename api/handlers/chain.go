package handlers

import (
	"net/http"

	"ledgerd/blockchain"
	"ledgerd/blockchain/store"
)

// HandleChain returns the full chain and its length.
func HandleChain(w http.ResponseWriter, r *http.Request, store store.ChainStore) {
	chain := store.Chain()
	writeJSON(w, http.StatusOK, blockchain.ChainResponse{
		Chain:  chain,
		Length: len(chain),
	})
}
