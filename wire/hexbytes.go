package wire

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes marshals to/from plain lowercase hex (no 0x prefix), the wire
// encoding for every compressed point, scalar, and ciphertext field.
type HexBytes []byte

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	s := hex.EncodeToString(b)
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	out = append(out, s...)
	out = append(out, '"')
	return out, nil
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid hex string: %s", data)
	}
	str := strings.TrimPrefix(string(data[1:len(data)-1]), "0x")
	decoded, err := hex.DecodeString(str)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	*b = decoded
	return nil
}
