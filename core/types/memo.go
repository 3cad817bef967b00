package types

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// MemoType is the kind of memo attached to a ledger payment.
type MemoType string

const (
	MemoTypeText MemoType = "text"
	MemoTypeID   MemoType = "id"
	MemoTypeHash MemoType = "hash"
	MemoTypeNone MemoType = "none"
)

const maxTextMemoBytes = 28

// ParseMemo validates memo against memoType and returns the normalised
// pair. Hash memos are accepted as base64 or hex and returned as base64.
// An empty pair yields ("", "", nil).
func ParseMemo(memo, memoType string) (string, MemoType, error) {
	memoType = strings.TrimSpace(memoType)
	if memoType == "" && memo == "" {
		return "", "", nil
	}
	switch MemoType(memoType) {
	case MemoTypeText:
		if len(memo) > maxTextMemoBytes {
			return "", "", fmt.Errorf("text memo must be at most %d bytes", maxTextMemoBytes)
		}
		return memo, MemoTypeText, nil
	case MemoTypeID:
		if _, err := strconv.ParseUint(memo, 10, 64); err != nil {
			return "", "", fmt.Errorf("Invalid memo %s of type:%s", memo, memoType)
		}
		return memo, MemoTypeID, nil
	case MemoTypeHash:
		raw, err := decodeHashMemo(memo)
		if err != nil {
			return "", "", err
		}
		return base64.StdEncoding.EncodeToString(raw), MemoTypeHash, nil
	case MemoTypeNone, "":
		if memo != "" {
			return "", "", fmt.Errorf("memo must be empty when memoType is none")
		}
		return "", "", nil
	default:
		return "", "", fmt.Errorf("Invalid memo type: %s", memoType)
	}
}

func decodeHashMemo(memo string) ([]byte, error) {
	if raw, err := hex.DecodeString(memo); err == nil && len(raw) == 32 {
		return raw, nil
	}
	raw, err := base64.StdEncoding.DecodeString(memo)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("Invalid memo %s of type:hash", memo)
	}
	return raw, nil
}
