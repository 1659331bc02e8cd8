package schema

// Block represents the blocks table - one row per block height observed in
// the trace stream. Rows are immutable after first insert.
type Block struct {
	// Height is the block height
	Height uint64 `gorm:"column:height;primaryKey;autoIncrement:false"`
	// TimeUnixMs is the block time in Unix milliseconds
	TimeUnixMs uint64 `gorm:"column:time_unix_ms;not null"`
}

// TableName specifies the table name for the Block model
func (Block) TableName() string {
	return "blocks"
}
