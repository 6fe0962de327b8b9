package p2p

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"ledgerd/blockchain"
)

type peerRecord struct {
	Address  string
	AddedAt  time.Time
	LastSeen time.Time
}

// PeerManager is the set of known peers keyed by their bare authority
// (host:port). Peers are only ever added.
type PeerManager struct {
	mu    sync.RWMutex
	peers map[string]*peerRecord
	order []string
}

func NewPeerManager(seeds []string) (*PeerManager, error) {
	pm := &PeerManager{
		peers: make(map[string]*peerRecord),
	}
	for _, s := range seeds {
		if _, _, err := pm.AddPeer(s); err != nil {
			return nil, fmt.Errorf("seed peer %q: %w", s, err)
		}
	}
	return pm, nil
}

// NormalizeAddress reduces a URL or bare address to its authority, dropping
// scheme, path, query and userinfo.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", &blockchain.ClientInputError{Field: "nodes", Reason: "empty address"}
	}
	if !strings.Contains(address, "://") {
		address = "//" + address
	}

	u, err := url.Parse(address)
	if err != nil {
		return "", &blockchain.ClientInputError{Field: "nodes", Reason: fmt.Sprintf("invalid address %q: %v", address, err)}
	}

	host := strings.ToLower(u.Host)
	if host == "" || u.Hostname() == "" {
		return "", &blockchain.ClientInputError{Field: "nodes", Reason: fmt.Sprintf("address %q has no host", address)}
	}
	if port := u.Port(); port != "" {
		return net.JoinHostPort(strings.ToLower(u.Hostname()), port), nil
	}
	return host, nil
}

// AddPeer registers address. It returns the normalized authority and whether
// it was new; registering a known peer is a no-op.
func (pm *PeerManager) AddPeer(address string) (string, bool, error) {
	authority, err := NormalizeAddress(address)
	if err != nil {
		return "", false, err
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, ok := pm.peers[authority]; ok {
		return authority, false, nil
	}

	now := time.Now()
	pm.peers[authority] = &peerRecord{Address: authority, AddedAt: now}
	pm.order = append(pm.order, authority)
	return authority, true, nil
}

// Addresses returns peers in registration order.
func (pm *PeerManager) Addresses() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]string, len(pm.order))
	copy(out, pm.order)
	return out
}

// SortedAddresses returns peers in lexical order, as reported to clients.
func (pm *PeerManager) SortedAddresses() []string {
	out := pm.Addresses()
	sort.Strings(out)
	return out
}

func (pm *PeerManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// MarkSeen records a successful fetch from address.
func (pm *PeerManager) MarkSeen(address string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if p, ok := pm.peers[address]; ok {
		p.LastSeen = time.Now()
	}
}

// lookup returns a copy of the peer record.
func (pm *PeerManager) lookup(address string) (peerRecord, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	p, ok := pm.peers[address]
	if !ok {
		return peerRecord{}, false
	}
	return *p, true
}
