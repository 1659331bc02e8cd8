package wasm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/bech32"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
)

// ErrUnrecognizedPrefix is returned when a store key does not start with a
// wasm-module prefix byte for the configured layout
var ErrUnrecognizedPrefix = errors.New("unrecognized key prefix")

// KeyFamily identifies which wasm key family a store key belongs to
type KeyFamily int

const (
	// KeyFamilyContractInfo is the family holding contract metadata entries
	KeyFamilyContractInfo KeyFamily = iota
	// KeyFamilyContractStore is the family holding contract state entries
	KeyFamilyContractStore
)

// KeyLayout describes a chain variant's wasm store key format.
//
// Standard chains prefix contract-info keys with 0x02 and contract-state
// keys with 0x03, followed by a fixed 32-byte contract address. Terra
// classic shifts the prefixes to 0x04/0x05 and inserts a one-byte address
// length before a variable-length address.
type KeyLayout struct {
	ContractInfoPrefix  byte
	ContractStorePrefix byte
	LengthPrefixed      bool
	// AddressLength is the fixed address size when LengthPrefixed is false
	AddressLength int
}

var (
	// StandardLayout is the key layout of wasmd-based chains
	StandardLayout = KeyLayout{
		ContractInfoPrefix:  0x02,
		ContractStorePrefix: 0x03,
		AddressLength:       32,
	}

	// TerraClassicLayout is the key layout of columbus-5
	TerraClassicLayout = KeyLayout{
		ContractInfoPrefix:  0x04,
		ContractStorePrefix: 0x05,
		LengthPrefixed:      true,
	}
)

// LayoutForChain returns the key layout used by the given chain
func LayoutForChain(chainID string) KeyLayout {
	if chainID == domain.ChainIDTerraClassic {
		return TerraClassicLayout
	}
	return StandardLayout
}

// DecodedKey is a parsed wasm store key
type DecodedKey struct {
	Family KeyFamily
	// ContractAddress holds the raw address bytes
	ContractAddress []byte
	// UserKey holds the contract's own key bytes; empty for contract-info keys
	UserKey []byte
}

// Decode parses a raw store key. It returns ErrUnrecognizedPrefix when the
// first byte belongs to neither wasm family, and ErrInvalidStoreKey when the
// key is shorter than the minimum for its family.
func (l KeyLayout) Decode(key []byte) (*DecodedKey, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", domain.ErrInvalidStoreKey)
	}

	var family KeyFamily
	switch key[0] {
	case l.ContractInfoPrefix:
		family = KeyFamilyContractInfo
	case l.ContractStorePrefix:
		family = KeyFamilyContractStore
	default:
		return nil, ErrUnrecognizedPrefix
	}

	body := key[1:]
	var addr, userKey []byte
	if l.LengthPrefixed {
		if len(body) < 1 {
			return nil, fmt.Errorf("%w: missing address length", domain.ErrInvalidStoreKey)
		}
		addrLen := int(body[0])
		if addrLen == 0 || len(body) < 1+addrLen {
			return nil, fmt.Errorf("%w: key shorter than address length %d", domain.ErrInvalidStoreKey, addrLen)
		}
		addr = body[1 : 1+addrLen]
		userKey = body[1+addrLen:]
	} else {
		if len(body) < l.AddressLength {
			return nil, fmt.Errorf("%w: key shorter than %d-byte address", domain.ErrInvalidStoreKey, l.AddressLength)
		}
		addr = body[:l.AddressLength]
		userKey = body[l.AddressLength:]
	}

	return &DecodedKey{
		Family:          family,
		ContractAddress: addr,
		UserKey:         userKey,
	}, nil
}

// EncodeContractInfoKey builds the store key holding a contract's metadata
func (l KeyLayout) EncodeContractInfoKey(addr []byte) []byte {
	return l.encode(l.ContractInfoPrefix, addr, nil)
}

// EncodeContractStoreKey builds the store key for a contract state entry
func (l KeyLayout) EncodeContractStoreKey(addr, userKey []byte) []byte {
	return l.encode(l.ContractStorePrefix, addr, userKey)
}

func (l KeyLayout) encode(prefix byte, addr, userKey []byte) []byte {
	size := 1 + len(addr) + len(userKey)
	if l.LengthPrefixed {
		size++
	}
	key := make([]byte, 0, size)
	key = append(key, prefix)
	if l.LengthPrefixed {
		key = append(key, byte(len(addr)))
	}
	key = append(key, addr...)
	key = append(key, userKey...)
	return key
}

// CanonicalKey renders user key bytes as a comma-joined list of decimal byte
// values, the stable string form used for storage and allowlist matching.
func CanonicalKey(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ",")
}

// ParseCanonicalKey converts a canonical key string back to its raw bytes
func ParseCanonicalKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	b := make([]byte, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid canonical key segment %q: %w", p, err)
		}
		b[i] = byte(v)
	}
	return b, nil
}

// Bech32Address renders raw address bytes with the chain's bech32 prefix
func Bech32Address(prefix string, addr []byte) (string, error) {
	conv, err := bech32.ConvertBits(addr, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	encoded, err := bech32.Encode(prefix, conv)
	if err != nil {
		return "", fmt.Errorf("failed to encode bech32 address: %w", err)
	}
	return encoded, nil
}
