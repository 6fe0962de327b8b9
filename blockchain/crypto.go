package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// canonicalEncoding is CBOR core deterministic encoding: struct keys are
// emitted in sorted order, integers and floats in their shortest form and
// nil slices as empty arrays, so equal blocks always produce equal bytes.
var canonicalEncoding = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.NilContainers = cbor.NilContainerAsEmpty
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("creating canonical CBOR encoder: %v", err))
	}
	return em
}()

// CanonicalBytes returns the deterministic serialization of the block's
// content fields.
func CanonicalBytes(block *Block) []byte {
	data, err := canonicalEncoding.Marshal(block)
	if err != nil {
		// Block contains only strings, integers and floats.
		panic(fmt.Sprintf("canonical encoding of block %d: %v", block.Index, err))
	}
	return data
}

// HashBlock returns the lowercase hex SHA-256 digest of the block's
// canonical serialization.
func HashBlock(block *Block) string {
	sum := sha256.Sum256(CanonicalBytes(block))
	return hex.EncodeToString(sum[:])
}
