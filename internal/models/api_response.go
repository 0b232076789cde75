package models

import "time"

// TransactionResponse is a transaction rendered for API consumers, with fixed-point
// fields decoded to decimal strings
type TransactionResponse struct {
	Version            uint64 `json:"version"`
	ExpirationDate     string `json:"expiration_date"`
	ExpirationUnixtime int64  `json:"expiration_unixtime"`
	Src                string `json:"src"`
	Dest               string `json:"dest"`
	Type               string `json:"type"`
	Amount             string `json:"amount"`
	GasPrice           string `json:"gas_price"`
	MaxGas             string `json:"max_gas"`
	GasUsed            string `json:"gas_used"`
	SqNum              uint64 `json:"sq_num"`
	PubKey             string `json:"pub_key"`
	SenderSig          string `json:"sender_sig"`
	SignedTxHash       string `json:"signed_tx_hash"`
	StateRootHash      string `json:"state_root_hash"`
	EventRootHash      string `json:"event_root_hash"`
	CodeHex            string `json:"code_hex,omitempty"`
	Program            string `json:"program,omitempty"`
}

// AccountTransactionsResponse is one page of an account's transactions
type AccountTransactionsResponse struct {
	Account      string                `json:"account"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
	Transactions []TransactionResponse `json:"transactions"`
}

// StatsWindowResponse is the statistics for one window. Fields keeps the positional
// order downstream formatting relies on.
type StatsWindowResponse struct {
	Window string        `json:"window"`
	Fields []interface{} `json:"fields"`
	Named  StatsSummary  `json:"named"`
}

// StatsSummary is the same statistics keyed by name
type StatsSummary struct {
	BlocksDelta  int64   `json:"blocks_delta"`
	Days         int64   `json:"days"`
	Hours        int64   `json:"hours"`
	Minutes      int64   `json:"minutes"`
	Seconds      int64   `json:"seconds"`
	Throughput   float64 `json:"throughput"`
	MintPercent  float64 `json:"mint_percent"`
	P2PPercent   float64 `json:"p2p_percent"`
	OtherPercent float64 `json:"other_percent"`
	MintSum      string  `json:"mint_sum"`
	P2PSum       string  `json:"p2p_sum"`
	OtherSum     string  `json:"other_sum"`
	DistinctDest int64   `json:"distinct_dest"`
	DistinctSrc  int64   `json:"distinct_src"`
}

// AccountStateResponse is an account's on-ledger state with the balance as a decimal string
type AccountStateResponse struct {
	Address             string `json:"address"`
	Balance             string `json:"balance"`
	SequenceNumber      uint64 `json:"sequence_number"`
	SentEventsCount     uint64 `json:"sent_events_count"`
	ReceivedEventsCount uint64 `json:"received_events_count"`
}

// StatsResponse bundles the all-time, 24h and 1h windows
type StatsResponse struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Windows     []StatsWindowResponse `json:"windows"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
