package blockchain

import "time"

// NewGenesisBlock returns the first block of a fresh chain. Its previous
// hash is a sentinel since it has no predecessor.
func NewGenesisBlock(now time.Time) Block {
	return Block{
		Index:        1,
		Timestamp:    UnixSeconds(now),
		Transactions: []Transfer{},
		Proof:        GenesisProof,
		PreviousHash: GenesisPreviousHash,
	}
}

// UnixSeconds renders t as fractional seconds since the epoch, the block
// timestamp format on the wire.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
