package schema

import "time"

// Contract represents the contracts table - one row per smart contract
// observed on chain, created on first observation of either a lifecycle
// event or a state event.
type Contract struct {
	// Address is the contract's bech32 address
	Address string `gorm:"column:address;primaryKey;type:text"`
	// CodeID is the ID of the wasm bytecode the contract runs; 0 means unknown
	CodeID uint64 `gorm:"column:code_id;not null;default:0;index"`
	// Admin is the address allowed to migrate the contract, when set
	Admin *string `gorm:"column:admin;type:text"`
	// Creator is the address that instantiated the contract
	Creator *string `gorm:"column:creator;type:text"`
	// Label is the human-readable label given at instantiation
	Label *string `gorm:"column:label;type:text"`
	// InstantiatedAtBlockHeight is the height of the first observation.
	// Instantiation columns never change after first insert.
	InstantiatedAtBlockHeight uint64 `gorm:"column:instantiated_at_block_height;not null"`
	// InstantiatedAtBlockTimeUnixMs is the block time of the first observation
	InstantiatedAtBlockTimeUnixMs uint64 `gorm:"column:instantiated_at_block_time_unix_ms;not null"`
	// InstantiatedAtBlockTimestamp is the same instant as a timestamp
	InstantiatedAtBlockTimestamp time.Time `gorm:"column:instantiated_at_block_timestamp;not null;type:timestamptz"`
}

// TableName specifies the table name for the Contract model
func (Contract) TableName() string {
	return "contracts"
}
