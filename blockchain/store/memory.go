package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ledgerd/blockchain"
)

type MemoryChainStore struct {
	mu      sync.Mutex
	chain   []blockchain.Block
	pending []blockchain.Transfer

	// now is replaced in tests
	now func() time.Time
}

func NewMemoryChainStore() *MemoryChainStore {
	return &MemoryChainStore{
		chain:   make([]blockchain.Block, 0),
		pending: make([]blockchain.Transfer, 0),
		now:     time.Now,
	}
}

// NewSeededChainStore returns a store holding only a genesis block sealed now.
func NewSeededChainStore() *MemoryChainStore {
	s := NewMemoryChainStore()
	// Seeding an empty store cannot fail.
	_ = s.Seed(blockchain.NewGenesisBlock(s.now()))
	return s
}

// Seed appends the genesis block to an empty store.
func (m *MemoryChainStore) Seed(genesis blockchain.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.chain) != 0 {
		return errors.New("chain already seeded")
	}
	m.chain = append(m.chain, genesis.Clone())
	return nil
}

// SubmitTransfer buffers tx for the next block and returns that block's index.
func (m *MemoryChainStore) SubmitTransfer(tx blockchain.Transfer) (uint64, error) {
	if err := blockchain.ValidateTransfer(tx); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = append(m.pending, tx)
	return uint64(len(m.chain)) + 1, nil
}

// SealBlock moves all pending transfers into a new block on top of the tip.
// An empty previousHash links the block to the hash of the current tip.
func (m *MemoryChainStore) SealBlock(proof uint64, previousHash string) (*blockchain.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if previousHash == "" {
		tip, err := m.tipUnsafe()
		if err != nil {
			return nil, err
		}
		previousHash = blockchain.HashBlock(tip)
	}
	return m.sealUnsafe(proof, previousHash), nil
}

// SealBlockOnTip seals only if tipHash still names the last block. Extra
// transfers (the miner reward) join the pending buffer in the same critical
// section, so a stale attempt leaves the store untouched.
func (m *MemoryChainStore) SealBlockOnTip(tipHash string, proof uint64, extra ...blockchain.Transfer) (*blockchain.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tip, err := m.tipUnsafe()
	if err != nil {
		return nil, err
	}
	if current := blockchain.HashBlock(tip); current != tipHash {
		return nil, fmt.Errorf("sealing on %.16s, tip is %.16s: %w", tipHash, current, blockchain.ErrStaleTip)
	}

	m.pending = append(m.pending, extra...)
	return m.sealUnsafe(proof, tipHash), nil
}

// sealUnsafe must be called with the lock held
func (m *MemoryChainStore) sealUnsafe(proof uint64, previousHash string) *blockchain.Block {
	block := blockchain.NewBlock(blockchain.BlockCreationParams{
		Index:        uint64(len(m.chain)) + 1,
		PreviousHash: previousHash,
		Proof:        proof,
		Transactions: m.pending,
		Timestamp:    m.now(),
	})

	m.pending = make([]blockchain.Transfer, 0)
	m.chain = append(m.chain, block)

	out := block.Clone()
	return &out
}

func (m *MemoryChainStore) Tip() (*blockchain.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tip, err := m.tipUnsafe()
	if err != nil {
		return nil, err
	}
	out := tip.Clone()
	return &out, nil
}

// tipUnsafe expects m.mu to be held.
func (m *MemoryChainStore) tipUnsafe() (*blockchain.Block, error) {
	if len(m.chain) == 0 {
		return nil, blockchain.ErrEmptyChain
	}
	return &m.chain[len(m.chain)-1], nil
}

// ReplaceChain swaps in a copy of newChain regardless of length and without
// validating it. It loads a known chain into a store; peer chains go through
// ReplaceChainIfLonger instead.
func (m *MemoryChainStore) ReplaceChain(newChain []blockchain.Block) error {
	if len(newChain) == 0 {
		return errors.New("cannot replace with empty chain")
	}

	replacement := blockchain.CloneChain(newChain)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.chain = replacement
	return nil
}

// ReplaceChainIfLonger swaps in newChain only while it is strictly longer
// than the chain held at the moment of the swap.
func (m *MemoryChainStore) ReplaceChainIfLonger(newChain []blockchain.Block) (bool, error) {
	if len(newChain) == 0 {
		return false, errors.New("cannot replace with empty chain")
	}

	replacement := blockchain.CloneChain(newChain)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(replacement) <= len(m.chain) {
		return false, nil
	}
	m.chain = replacement
	return true, nil
}

// Chain returns a copy of every sealed block.
func (m *MemoryChainStore) Chain() []blockchain.Block {
	m.mu.Lock()
	defer m.mu.Unlock()
	return blockchain.CloneChain(m.chain)
}

func (m *MemoryChainStore) Length() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chain)
}

func (m *MemoryChainStore) Pending() []blockchain.Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]blockchain.Transfer, len(m.pending))
	copy(out, m.pending)
	return out
}
