package schema

// WasmCode represents the wasm_codes table - the mapping from symbolic
// code-key names to on-chain code IDs, maintained by the external wasm-code
// tracker and read by the allowlist filter and transformer engine.
type WasmCode struct {
	// CodeKey is the symbolic name of a code group (e.g. "cl-vault")
	CodeKey string `gorm:"column:code_key;primaryKey;type:text"`
	// CodeID is one code ID belonging to the group
	CodeID uint64 `gorm:"column:code_id;primaryKey;autoIncrement:false"`
}

// TableName specifies the table name for the WasmCode model
func (WasmCode) TableName() string {
	return "wasm_codes"
}
