package schema

import "gorm.io/datatypes"

// WasmStateEvent represents the wasm_state_events table - one row per
// (height, contract, key) state mutation. The composite unique index is
// load-bearing: re-exports of the same block collapse onto it.
type WasmStateEvent struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// BlockHeight is the height the mutation was committed at
	BlockHeight uint64 `gorm:"column:block_height;not null;uniqueIndex:idx_state_events_block_contract_key,priority:1"`
	// ContractAddress is the bech32 address of the contract
	ContractAddress string `gorm:"column:contract_address;not null;type:text;uniqueIndex:idx_state_events_block_contract_key,priority:2"`
	// Key is the canonical comma-joined decimal rendering of the state key
	Key string `gorm:"column:key;not null;type:text;uniqueIndex:idx_state_events_block_contract_key,priority:3"`
	// Value holds the raw value bytes verbatim; may be non-UTF-8
	Value string `gorm:"column:value;not null;type:text"`
	// ValueJSON is the parsed value when the value parses as JSON
	ValueJSON datatypes.JSON `gorm:"column:value_json;type:jsonb"`
	// Delete indicates the key was deleted at this height
	Delete bool `gorm:"column:delete;not null;default:false"`
	// CodeID is denormalized from the contract at insert time
	CodeID uint64 `gorm:"column:code_id;not null;index"`
	// BlockTimeUnixMs is the block time in Unix milliseconds
	BlockTimeUnixMs uint64 `gorm:"column:block_time_unix_ms;not null"`
}

// TableName specifies the table name for the WasmStateEvent model
func (WasmStateEvent) TableName() string {
	return "wasm_state_events"
}
