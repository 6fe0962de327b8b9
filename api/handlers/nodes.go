package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"ledgerd/blockchain"
	"ledgerd/logger"
	"ledgerd/p2p"
)

type PeerRegistry interface {
	AddPeer(address string) (string, bool, error)
	SortedAddresses() []string
}

type ChainResolver interface {
	Resolve(ctx context.Context) (p2p.Resolution, error)
}

type registerNodesRequest struct {
	Nodes []string `json:"nodes"`
}

type RegisterNodesResponse struct {
	Message    string   `json:"message"`
	TotalNodes []string `json:"total_nodes"`
}

type ResolveResponse struct {
	Message  string             `json:"message"`
	NewChain []blockchain.Block `json:"new_chain,omitempty"`
	Chain    []blockchain.Block `json:"chain,omitempty"`
}

// HandleRegisterNodes adds every listed peer. The request is rejected as a
// whole if any address is malformed.
func HandleRegisterNodes(w http.ResponseWriter, r *http.Request, peers PeerRegistry, log zerolog.Logger) {
	var req registerNodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Nodes) == 0 {
		http.Error(w, "please supply a valid list of nodes", http.StatusBadRequest)
		return
	}

	for _, addr := range req.Nodes {
		if _, err := p2p.NormalizeAddress(addr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	for _, addr := range req.Nodes {
		authority, added, err := peers.AddPeer(addr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if added {
			log.Info().Str(logger.PeerKey, authority).Msg("peer registered")
		}
	}

	writeJSON(w, http.StatusCreated, RegisterNodesResponse{
		Message:    "new nodes have been added",
		TotalNodes: peers.SortedAddresses(),
	})
}

// HandleResolve runs one consensus round and reports whether the local chain
// was replaced.
func HandleResolve(w http.ResponseWriter, r *http.Request, resolver ChainResolver, log zerolog.Logger) {
	res, err := resolver.Resolve(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		log.Error().Err(err).Msg("resolution failed")
		http.Error(w, "resolution failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if res.Skipped != nil {
		log.Debug().Err(res.Skipped).Msg("peers skipped during resolution")
	}

	if res.Adopted {
		writeJSON(w, http.StatusOK, ResolveResponse{Message: "our chain was replaced", NewChain: res.Chain})
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Message: "our chain is authoritative", Chain: res.Chain})
}
