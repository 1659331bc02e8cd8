package webhook

import "github.com/burnt-labs/dao-dao-indexer/internal/domain"

// StateEventPayload is the message enqueued for each deliverable state
// event. Delivery itself happens in the external webhook subsystem; redeliv-
// ery after a crash is possible, so consumers must be idempotent.
type StateEventPayload struct {
	ChainID         string `json:"chain_id"`
	ContractAddress string `json:"contract_address"`
	CodeID          uint64 `json:"code_id"`
	BlockHeight     uint64 `json:"block_height"`
	BlockTimeUnixMs uint64 `json:"block_time_unix_ms"`
	Key             string `json:"key"`
	Value           string `json:"value"`
	ValueJSON       any    `json:"value_json,omitempty"`
	Delete          bool   `json:"delete"`
}

// FromStateEvent builds the payload for one persisted state event
func FromStateEvent(chainID string, event domain.StateEvent) StateEventPayload {
	payload := StateEventPayload{
		ChainID:         chainID,
		ContractAddress: event.ContractAddress,
		CodeID:          event.CodeID,
		BlockHeight:     event.BlockHeight,
		BlockTimeUnixMs: event.BlockTimeUnixMs,
		Key:             event.Key,
		Value:           event.Value,
		Delete:          event.Delete,
	}
	if event.ValueJSON != nil {
		payload.ValueJSON = event.ValueJSON
	}
	return payload
}
