package wasm

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ContractInfo is the wasm module's contract metadata entry.
//
// Only the fields the indexer consumes are decoded; the chain's message
// carries more (creation position, IBC port, extension) which is skipped.
type ContractInfo struct {
	CodeID  uint64
	Creator string
	Admin   string
	Label   string
}

// Field numbers of the chain's ContractInfo protobuf message.
const (
	contractInfoFieldCodeID  = 1
	contractInfoFieldCreator = 2
	contractInfoFieldAdmin   = 3
	contractInfoFieldLabel   = 4
)

// DecodeContractInfo parses a protobuf-encoded ContractInfo value
func DecodeContractInfo(b []byte) (*ContractInfo, error) {
	var info ContractInfo
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("malformed contract info: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == contractInfoFieldCodeID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed code_id: %w", protowire.ParseError(n))
			}
			info.CodeID = v
			b = b[n:]
		case num == contractInfoFieldCreator && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed creator: %w", protowire.ParseError(n))
			}
			info.Creator = v
			b = b[n:]
		case num == contractInfoFieldAdmin && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed admin: %w", protowire.ParseError(n))
			}
			info.Admin = v
			b = b[n:]
		case num == contractInfoFieldLabel && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed label: %w", protowire.ParseError(n))
			}
			info.Label = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("malformed field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return &info, nil
}
