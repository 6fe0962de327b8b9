package blockchain

const (
	// GenesisProof is the fixed puzzle solution of the first block.
	GenesisProof uint64 = 100

	// GenesisPreviousHash is the sentinel predecessor hash of the first block.
	// It is not derived from any block.
	GenesisPreviousHash = "1"

	// RewardSender marks a transfer minted by sealing a block rather than
	// moved from an existing account.
	RewardSender = "0"
)

// Transfer moves Amount from Sender to Recipient.
type Transfer struct {
	Sender    string `json:"sender" cbor:"sender"`
	Recipient string `json:"recipient" cbor:"recipient"`
	Amount    uint64 `json:"amount" cbor:"amount"`
}

// Block is a sealed unit of the chain. The JSON field names are the wire
// format peers exchange and must not change.
type Block struct {
	Index        uint64     `json:"index" cbor:"index"`
	Timestamp    float64    `json:"timestamp" cbor:"timestamp"`
	Transactions []Transfer `json:"transactions" cbor:"transactions"`
	Proof        uint64     `json:"proof" cbor:"proof"`
	PreviousHash string     `json:"previous_hash" cbor:"previous_hash"`
}

// ChainResponse is the payload served at /chain and fetched from peers.
type ChainResponse struct {
	Chain  []Block `json:"chain"`
	Length int     `json:"length"`
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	txs := make([]Transfer, len(b.Transactions))
	copy(txs, b.Transactions)
	b.Transactions = txs
	return b
}

// CloneChain deep copies every block of chain.
func CloneChain(chain []Block) []Block {
	out := make([]Block, len(chain))
	for i := range chain {
		out[i] = chain[i].Clone()
	}
	return out
}
