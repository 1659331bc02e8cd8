package domain

import "errors"

var (
	// ErrContractNotFound is returned by the node RPC when a contract does
	// not exist at the queried address
	ErrContractNotFound = errors.New("contract not found")

	// ErrChainIDMissing is returned at startup when the chain ID is neither
	// configured nor discoverable from the node or the indexer state
	ErrChainIDMissing = errors.New("chain id missing")

	// ErrIndexerStateMissing is returned when the indexer state singleton is
	// absent during export
	ErrIndexerStateMissing = errors.New("indexer state missing")

	// ErrInvalidStoreKey is returned by the key codec for keys that are too
	// short or malformed for their family
	ErrInvalidStoreKey = errors.New("invalid store key")
)
