package blockchain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateTransfer checks the fields a submitted transfer must carry.
func ValidateTransfer(tx Transfer) error {
	if strings.TrimSpace(tx.Sender) == "" {
		return &ClientInputError{Field: "sender", Reason: "missing"}
	}
	if strings.TrimSpace(tx.Recipient) == "" {
		return &ClientInputError{Field: "recipient", Reason: "missing"}
	}
	return nil
}

// validateLink checks curr against its predecessor prev.
func validateLink(prev, curr *Block, engine *Engine) error {
	if curr.Index != prev.Index+1 {
		return &InvalidChainError{
			Index:  curr.Index,
			Reason: fmt.Sprintf("index does not follow %d", prev.Index),
		}
	}

	if want := HashBlock(prev); curr.PreviousHash != want {
		return &InvalidChainError{
			Index:  curr.Index,
			Reason: fmt.Sprintf("previous hash %.16s does not match %.16s", curr.PreviousHash, want),
		}
	}

	if !engine.ValidProof(prev.Proof, curr.Proof) {
		return &InvalidChainError{
			Index:  curr.Index,
			Reason: fmt.Sprintf("proof %d does not satisfy target %q after %d", curr.Proof, engine.Difficulty().Target, prev.Proof),
		}
	}
	return nil
}

// validateGenesis checks that first has the shape of a seeded genesis block.
// Its timestamp is the seeding time and is not checked.
func validateGenesis(first *Block) error {
	switch {
	case first.Index != 1:
		return &InvalidChainError{Index: first.Index, Reason: "chain does not start at index 1"}
	case first.PreviousHash != GenesisPreviousHash:
		return &InvalidChainError{Index: first.Index, Reason: fmt.Sprintf("genesis previous hash %q is not %q", first.PreviousHash, GenesisPreviousHash)}
	case first.Proof != GenesisProof:
		return &InvalidChainError{Index: first.Index, Reason: fmt.Sprintf("genesis proof %d is not %d", first.Proof, GenesisProof)}
	}
	return nil
}

// ValidateChain checks that the chain starts with a genesis block, then walks
// it and returns an *InvalidChainError at the first broken link. An empty
// chain has nothing to check.
func ValidateChain(chain []Block, engine *Engine) error {
	if len(chain) == 0 {
		return nil
	}
	if err := validateGenesis(&chain[0]); err != nil {
		return err
	}
	for i := 1; i < len(chain); i++ {
		if err := validateLink(&chain[i-1], &chain[i], engine); err != nil {
			return err
		}
	}
	return nil
}

// ValidChain is the boolean form of ValidateChain.
func ValidChain(chain []Block, engine *Engine) bool {
	return ValidateChain(chain, engine) == nil
}

// IsInvalidChain reports whether err carries an *InvalidChainError.
func IsInvalidChain(err error) bool {
	var ice *InvalidChainError
	return errors.As(err, &ice)
}
