package models

import (
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// AccountState is the on-ledger state of one account as reported by the remote node
type AccountState struct {
	Address             string          `json:"address"`
	Balance             decimal.Decimal `json:"balance"`
	SequenceNumber      uint64          `json:"sequence_number"`
	SentEventsCount     uint64          `json:"sent_events_count"`
	ReceivedEventsCount uint64          `json:"received_events_count"`
}

// IsAccountID reports whether s is a 64 character hex account address
func IsAccountID(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
