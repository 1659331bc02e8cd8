package domain

const (
	// ChainIDTerraClassic uses length-prefixed wasm store keys with shifted
	// prefix bytes, unlike every other supported chain
	ChainIDTerraClassic = "columbus-5"

	// CodeIDUnknown is the sentinel code ID for contracts whose code ID has
	// not been resolved yet, or whose contract the node reports as absent.
	// It is never a valid code ID downstream.
	CodeIDUnknown = uint64(0)
)
