package store

import (
	"context"

	"github.com/burnt-labs/dao-dao-indexer/internal/store/schema"
)

// Store defines the persistence operations of the export pipeline
type Store interface {
	// Migrate creates the schema, including the composite unique indexes the
	// upsert conflict targets depend on
	Migrate(ctx context.Context) error

	// EnsureBlocks inserts one row per distinct block height; existing rows
	// are left untouched
	EnsureBlocks(ctx context.Context, blocks []schema.Block) error

	// UpsertContracts inserts contracts from lifecycle events. On address
	// conflict, code_id, admin, creator, and label are updated; the
	// instantiation columns keep their first-insert values.
	UpsertContracts(ctx context.Context, contracts []schema.Contract) error

	// EnsureContractsExist inserts placeholder rows (code_id 0) for
	// addresses seen only through state events; existing rows are left
	// untouched
	EnsureContractsExist(ctx context.Context, contracts []schema.Contract) error

	// GetContractsByAddresses returns the contract rows for the given
	// addresses; missing addresses are simply absent from the result
	GetContractsByAddresses(ctx context.Context, addresses []string) ([]schema.Contract, error)

	// UpdateContractCodeIDs sets code_id on the given contracts, leaving all
	// other columns alone
	UpdateContractCodeIDs(ctx context.Context, codeIDs map[string]uint64) error

	// UpsertStateEvents bulk-inserts state events. On composite-key conflict
	// (block_height, contract_address, key), value, value_json, and delete
	// are overwritten. Returns the persisted rows.
	UpsertStateEvents(ctx context.Context, events []schema.WasmStateEvent) ([]schema.WasmStateEvent, error)

	// UpsertTransformations bulk-inserts derived rows. On composite-key
	// conflict (contract_address, name, block_height), value is overwritten.
	UpsertTransformations(ctx context.Context, rows []schema.WasmStateEventTransformation) ([]schema.WasmStateEventTransformation, error)

	// GetIndexerState returns the singleton state row, or
	// domain.ErrIndexerStateMissing when it does not exist
	GetIndexerState(ctx context.Context) (*schema.IndexerState, error)

	// EnsureIndexerState creates the singleton state row if absent and
	// returns it
	EnsureIndexerState(ctx context.Context, chainID string) (*schema.IndexerState, error)

	// AdvanceIndexerState advances the watermark and latest-block pointers
	// with GREATEST semantics; no column ever moves backwards
	AdvanceIndexerState(ctx context.Context, lastWasmHeight, latestHeight, latestTimeMs uint64) error

	// GetWasmCodes returns the code-key name to code-ID set mapping
	GetWasmCodes(ctx context.Context) (map[string][]uint64, error)
}
