package store

import (
	"ledgerd/blockchain"
)

// ChainStore owns the sealed chain and the buffer of pending transfers.
// Implementations serialize every mutation so that no caller observes a
// block that is sealed but not yet appended, or the reverse.
type ChainStore interface {

	// Update/Add/Put
	Seed(genesis blockchain.Block) error
	SubmitTransfer(tx blockchain.Transfer) (uint64, error)
	SealBlock(proof uint64, previousHash string) (*blockchain.Block, error)
	SealBlockOnTip(tipHash string, proof uint64, extra ...blockchain.Transfer) (*blockchain.Block, error)
	ReplaceChain(chain []blockchain.Block) error
	ReplaceChainIfLonger(chain []blockchain.Block) (bool, error)

	// Getters
	Tip() (*blockchain.Block, error)
	Chain() []blockchain.Block
	Length() int
	Pending() []blockchain.Transfer
}
