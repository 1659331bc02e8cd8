package wasm

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/logger"
)

// Matcher classifies raw trace records into contract-lifecycle and
// contract-state events. Records that do not belong to the wasm module, or
// whose payload does not decode, yield nothing.
type Matcher struct {
	layout       KeyLayout
	bech32Prefix string
}

// NewMatcher creates a matcher for the given chain's key layout and address
// prefix
func NewMatcher(chainID, bech32Prefix string) *Matcher {
	return &Matcher{
		layout:       LayoutForChain(chainID),
		bech32Prefix: bech32Prefix,
	}
}

// Match classifies one trace record. At most one of the returned events is
// non-nil; both nil means the record was dropped.
func (m *Matcher) Match(rec domain.TraceRecord) (*domain.ContractEvent, *domain.StateEvent) {
	key, err := base64.StdEncoding.DecodeString(rec.Key)
	if err != nil {
		logger.Debug("dropping trace record with undecodable key", zap.Error(err))
		return nil, nil
	}

	decoded, err := m.layout.Decode(key)
	if err != nil {
		return nil, nil
	}

	address, err := Bech32Address(m.bech32Prefix, decoded.ContractAddress)
	if err != nil {
		logger.Debug("dropping trace record with unencodable address", zap.Error(err))
		return nil, nil
	}

	value, err := base64.StdEncoding.DecodeString(rec.Value)
	if err != nil {
		logger.Debug("dropping trace record with undecodable value", zap.Error(err))
		return nil, nil
	}

	height := uint64(rec.Metadata.BlockHeight)
	blockTime := rec.BlockTime()

	if decoded.Family == KeyFamilyContractInfo && rec.Operation == domain.TraceOperationWrite {
		info, err := DecodeContractInfo(value)
		if err != nil {
			logger.Debug("dropping contract info record with undecodable value",
				zap.String("address", address), zap.Error(err))
			return nil, nil
		}
		if info.CodeID == domain.CodeIDUnknown {
			return nil, nil
		}
		return &domain.ContractEvent{
			Address:         address,
			CodeID:          info.CodeID,
			Admin:           info.Admin,
			Creator:         info.Creator,
			Label:           info.Label,
			BlockHeight:     height,
			BlockTimeUnixMs: blockTime,
		}, nil
	}

	if decoded.Family == KeyFamilyContractInfo {
		// Contract-info deletes carry no usable metadata.
		return nil, nil
	}

	event := &domain.StateEvent{
		ContractAddress: address,
		Key:             CanonicalKey(decoded.UserKey),
		Value:           string(value),
		Delete:          rec.Operation == domain.TraceOperationDelete,
		CodeID:          domain.CodeIDUnknown,
		BlockHeight:     height,
		BlockTimeUnixMs: blockTime,
	}
	if rec.Operation != domain.TraceOperationDelete && utf8.Valid(value) && json.Valid(value) {
		event.ValueJSON = json.RawMessage(value)
	}
	return nil, event
}

// MatchBatch classifies a batch of records, collapsing duplicate event IDs
// with last-write-wins: trace splitting can re-emit the same key at the same
// height, and only the final write must survive.
func (m *Matcher) MatchBatch(records []domain.TraceRecord) ([]domain.ContractEvent, []domain.StateEvent) {
	contractIdx := make(map[string]int)
	stateIdx := make(map[string]int)
	var contracts []domain.ContractEvent
	var states []domain.StateEvent

	for _, rec := range records {
		contractEvent, stateEvent := m.Match(rec)
		switch {
		case contractEvent != nil:
			if i, ok := contractIdx[contractEvent.ID()]; ok {
				contracts[i] = *contractEvent
			} else {
				contractIdx[contractEvent.ID()] = len(contracts)
				contracts = append(contracts, *contractEvent)
			}
		case stateEvent != nil:
			if i, ok := stateIdx[stateEvent.ID()]; ok {
				states[i] = *stateEvent
			} else {
				stateIdx[stateEvent.ID()] = len(states)
				states = append(states, *stateEvent)
			}
		}
	}

	return contracts, states
}
