package schema

// IndexerStateID is the fixed primary key of the indexer state singleton
const IndexerStateID = uint32(1)

// IndexerState represents the indexer_states table - a single row tracking
// the export watermark and latest-block pointers. All numeric columns only
// ever advance (GREATEST semantics).
type IndexerState struct {
	ID uint32 `gorm:"column:id;primaryKey;autoIncrement:false"`
	// ChainID is the ID of the chain being indexed
	ChainID string `gorm:"column:chain_id;not null;type:text"`
	// LastWasmBlockHeightExported is the watermark: every wasm-module write
	// up to and including this height has been persisted
	LastWasmBlockHeightExported uint64 `gorm:"column:last_wasm_block_height_exported;not null;default:0"`
	// LatestBlockHeight is the highest block height observed
	LatestBlockHeight uint64 `gorm:"column:latest_block_height;not null;default:0"`
	// LatestBlockTimeUnixMs is the block time of the highest block observed
	LatestBlockTimeUnixMs uint64 `gorm:"column:latest_block_time_unix_ms;not null;default:0"`
}

// TableName specifies the table name for the IndexerState model
func (IndexerState) TableName() string {
	return "indexer_states"
}
