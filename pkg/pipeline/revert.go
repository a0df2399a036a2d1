package pipeline

import (
	"encoding/binary"
	"unicode/utf8"
)

// errorStringSelector is the 4-byte selector of Error(string).
var errorStringSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0}

// DecodeRevertReason extracts the human-readable reason from an
// Error(string) revert payload. Returns "" when the payload is absent or in
// another shape (custom errors, panics).
func DecodeRevertReason(data []byte) string {
	if len(data) < 4+32+32 {
		return ""
	}
	if [4]byte(data[:4]) != errorStringSelector {
		return ""
	}
	body := data[4:]
	// Offset and length are contract-controlled words. Compare against the
	// remaining body size instead of adding to them so values near 2^64
	// cannot wrap the bounds checks.
	offset := binary.BigEndian.Uint64(body[24:32])
	if offset > uint64(len(body))-32 {
		return ""
	}
	length := binary.BigEndian.Uint64(body[offset+24 : offset+32])
	start := offset + 32
	if length > uint64(len(body))-start {
		return ""
	}
	reason := string(body[start : start+length])
	if !utf8.ValidString(reason) {
		return ""
	}
	return reason
}
