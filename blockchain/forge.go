package blockchain

import "time"

type BlockCreationParams struct {
	Index        uint64
	PreviousHash string
	Proof        uint64
	Transactions []Transfer
	Timestamp    time.Time
}

// NewBlock assembles a block from already-found proof and pending transfers.
// A zero Timestamp means now.
func NewBlock(params BlockCreationParams) Block {
	ts := params.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	txs := make([]Transfer, len(params.Transactions))
	copy(txs, params.Transactions)

	return Block{
		Index:        params.Index,
		Timestamp:    UnixSeconds(ts),
		Transactions: txs,
		Proof:        params.Proof,
		PreviousHash: params.PreviousHash,
	}
}
