package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TraceOperation is the kind of store mutation carried by a trace record
type TraceOperation string

const (
	// TraceOperationWrite indicates a key was written
	TraceOperationWrite TraceOperation = "write"
	// TraceOperationDelete indicates a key was deleted
	TraceOperationDelete TraceOperation = "delete"
)

// FlexUint64 is an unsigned integer that unmarshals from either a JSON
// number or an integer-valued JSON string. Trace pipes emit both encodings
// depending on the node version.
type FlexUint64 uint64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexUint64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer value %q: %w", s, err)
	}
	*f = FlexUint64(v)
	return nil
}

// MarshalJSON implements json.Marshaler
func (f FlexUint64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(f), 10)), nil
}

// TraceMetadata carries the block context of a trace record
type TraceMetadata struct {
	// BlockHeight is the height the mutation was committed at
	BlockHeight FlexUint64 `json:"blockHeight"`
	// TxHash is the hash of the transaction that caused the mutation, when known
	TxHash string `json:"txHash,omitempty"`
	// BlockTimeUnixMs is the block time; some node versions put it here
	// instead of at the record top level
	BlockTimeUnixMs FlexUint64 `json:"blockTimeUnixMs,omitempty"`
}

// TraceRecord is one raw key/value store mutation read from the trace pipe
type TraceRecord struct {
	// Operation is "write" or "delete"
	Operation TraceOperation `json:"operation"`
	// Key is the base64-encoded raw store key
	Key string `json:"key"`
	// Value is the base64-encoded raw value; may be empty for deletes
	Value string `json:"value"`
	// Metadata carries the block context
	Metadata TraceMetadata `json:"metadata"`
	// BlockTimeUnixMs is the block time in Unix milliseconds
	BlockTimeUnixMs FlexUint64 `json:"blockTimeUnixMs,omitempty"`
}

// BlockTime returns the record's block time in Unix milliseconds, wherever
// the emitting node put it.
func (r *TraceRecord) BlockTime() uint64 {
	if r.BlockTimeUnixMs > 0 {
		return uint64(r.BlockTimeUnixMs)
	}
	return uint64(r.Metadata.BlockTimeUnixMs)
}

// ContractEvent is a decoded contract-lifecycle event (instantiation or
// migration of a contract's ContractInfo entry)
type ContractEvent struct {
	Address         string `json:"address"`
	CodeID          uint64 `json:"code_id"`
	Admin           string `json:"admin,omitempty"`
	Creator         string `json:"creator,omitempty"`
	Label           string `json:"label,omitempty"`
	BlockHeight     uint64 `json:"block_height"`
	BlockTimeUnixMs uint64 `json:"block_time_unix_ms"`
}

// ID identifies the event for in-batch deduplication; later records with the
// same ID overwrite earlier ones.
func (e ContractEvent) ID() string {
	return fmt.Sprintf("contract:%d:%s", e.BlockHeight, e.Address)
}

// StateEvent is a decoded contract-state write or delete
type StateEvent struct {
	ContractAddress string `json:"contract_address"`
	// Key is the canonical comma-joined decimal byte rendering of the user key
	Key string `json:"key"`
	// Value holds the raw value bytes verbatim (possibly non-UTF-8)
	Value string `json:"value"`
	// ValueJSON is the parsed value when it parses as JSON, nil otherwise
	ValueJSON json.RawMessage `json:"value_json,omitempty"`
	Delete    bool            `json:"delete"`
	// CodeID is 0 until resolved against the contract registry
	CodeID          uint64 `json:"code_id"`
	BlockHeight     uint64 `json:"block_height"`
	BlockTimeUnixMs uint64 `json:"block_time_unix_ms"`
}

// ID identifies the event for in-batch deduplication
func (e StateEvent) ID() string {
	return fmt.Sprintf("state:%d:%s:%s", e.BlockHeight, e.ContractAddress, e.Key)
}

// ContractMeta is the contract metadata returned by the node RPC
type ContractMeta struct {
	Address string
	CodeID  uint64
	Admin   string
	Creator string
	Label   string
}
