package ledger

import "encoding/json"

// RPC method names served by the remote ledger node
const (
	methodLatestVersion = "ledger_getLatestVersion"
	methodTransactions  = "ledger_getTransactions"
	methodAccountState  = "ledger_getAccountState"
)

// TransactionPage is one ledger_getTransactions response. Record i carries version
// FirstVersion+i. Records stay undecoded so one malformed record cannot fail the page.
type TransactionPage struct {
	FirstVersion uint64            `json:"first_version"`
	Transactions []json.RawMessage `json:"transactions"`
}

// RawTransaction is a committed transaction as the node ships it. Byte fields are
// lowercase hex strings.
type RawTransaction struct {
	Sender          string          `json:"sender"`
	SequenceNumber  uint64          `json:"sequence_number"`
	ExpirationTime  uint64          `json:"expiration_time"`
	GasUnitPrice    uint64          `json:"gas_unit_price"`
	MaxGasAmount    uint64          `json:"max_gas_amount"`
	Program         RawProgram      `json:"program"`
	SenderPublicKey string          `json:"sender_public_key"`
	SenderSignature string          `json:"sender_signature"`
	Kind            string          `json:"kind,omitempty"`
	Info            TransactionInfo `json:"info"`
}

// RawProgram is the script executed by a transaction
type RawProgram struct {
	Code      string        `json:"code"`
	Arguments []RawArgument `json:"arguments"`
	Modules   []string      `json:"modules,omitempty"`
}

// RawArgument is one typed program argument
type RawArgument struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// TransactionInfo is the execution outcome attached to a transaction
type TransactionInfo struct {
	GasUsed               uint64 `json:"gas_used"`
	SignedTransactionHash string `json:"signed_transaction_hash"`
	StateRootHash         string `json:"state_root_hash"`
	EventRootHash         string `json:"event_root_hash"`
}

type latestVersionResult struct {
	Version uint64 `json:"version"`
}

type transactionsParams struct {
	StartVersion uint64 `json:"start_version"`
	Limit        uint64 `json:"limit"`
}

type accountStateParams struct {
	Address string `json:"address"`
}

// Balance is in micro-units
type accountStateResult struct {
	Address             string `json:"address"`
	Balance             uint64 `json:"balance"`
	SequenceNumber      uint64 `json:"sequence_number"`
	SentEventsCount     uint64 `json:"sent_events_count"`
	ReceivedEventsCount uint64 `json:"received_events_count"`
}
