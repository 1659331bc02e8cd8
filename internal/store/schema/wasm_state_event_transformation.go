package schema

import "gorm.io/datatypes"

// WasmStateEventTransformation represents the
// wasm_state_event_transformations table - derived rows produced by the
// transformer engine from raw state events.
type WasmStateEventTransformation struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ContractAddress is the bech32 address of the source contract
	ContractAddress string `gorm:"column:contract_address;not null;type:text;uniqueIndex:idx_transformations_contract_name_block,priority:1"`
	// Name is the transformer output name
	Name string `gorm:"column:name;not null;type:text;uniqueIndex:idx_transformations_contract_name_block,priority:2"`
	// BlockHeight is the height of the source state event
	BlockHeight uint64 `gorm:"column:block_height;not null;uniqueIndex:idx_transformations_contract_name_block,priority:3"`
	// Value is the derived JSON value
	Value datatypes.JSON `gorm:"column:value;type:jsonb"`
}

// TableName specifies the table name for the WasmStateEventTransformation model
func (WasmStateEventTransformation) TableName() string {
	return "wasm_state_event_transformations"
}
