package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ledgerd/blockchain"
)

// maxChainResponseBytes bounds the body read from a single peer.
const maxChainResponseBytes = 64 << 20

// ChainFetcher retrieves a peer's chain. Implementations return
// *blockchain.PeerUnreachableError for transport failures.
type ChainFetcher interface {
	FetchChain(ctx context.Context, peer string) (*blockchain.ChainResponse, error)
}

// FetcherFunc adapts a function to ChainFetcher.
type FetcherFunc func(ctx context.Context, peer string) (*blockchain.ChainResponse, error)

func (f FetcherFunc) FetchChain(ctx context.Context, peer string) (*blockchain.ChainResponse, error) {
	return f(ctx, peer)
}

// HTTPFetcher pulls GET http://<peer>/chain.
type HTTPFetcher struct {
	client *http.Client
	scheme string
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{client: client, scheme: "http"}
}

func (f *HTTPFetcher) FetchChain(ctx context.Context, peer string) (*blockchain.ChainResponse, error) {
	url := fmt.Sprintf("%s://%s/chain", f.scheme, peer)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &blockchain.PeerUnreachableError{Peer: peer, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &blockchain.PeerUnreachableError{Peer: peer, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &blockchain.PeerUnreachableError{Peer: peer, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var out blockchain.ChainResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxChainResponseBytes)).Decode(&out); err != nil {
		return nil, &blockchain.PeerUnreachableError{Peer: peer, Err: fmt.Errorf("decoding chain: %w", err)}
	}
	return &out, nil
}
