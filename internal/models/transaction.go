package models

// Transaction types reported by the remote ledger. Any other kind is kept verbatim and
// counted as "other" by the statistics.
const (
	TypeMint       = "mint_transaction"
	TypePeerToPeer = "peer_to_peer_transaction"
)

// TxClass groups transaction types for aggregation
type TxClass int

const (
	ClassMint TxClass = iota
	ClassPeerToPeer
	ClassOther
)

// MaxExpirationUnixtime is the largest expiration timestamp kept; larger values are
// clamped so date conversion never overflows.
const MaxExpirationUnixtime int64 = 2147485547

// Transaction is one committed ledger entry. Version is the primary key.
// Amount, GasPrice, MaxGas and GasUsed are micro-units (scaled by 1,000,000).
type Transaction struct {
	Version            uint64 `json:"version"`
	ExpirationDate     string `json:"expiration_date"`
	Src                string `json:"src"`
	Dest               string `json:"dest"`
	Type               string `json:"type"`
	Amount             uint64 `json:"amount"`
	GasPrice           uint64 `json:"gas_price"`
	MaxGas             uint64 `json:"max_gas"`
	SqNum              uint64 `json:"sq_num"`
	PubKey             string `json:"pub_key"`
	ExpirationUnixtime int64  `json:"expiration_unixtime"`
	GasUsed            uint64 `json:"gas_used"`
	SenderSig          string `json:"sender_sig"`
	SignedTxHash       string `json:"signed_tx_hash"`
	StateRootHash      string `json:"state_root_hash"`
	EventRootHash      string `json:"event_root_hash"`
	CodeHex            string `json:"code_hex"`
	Program            string `json:"program"`
}

// Class returns the aggregation class of the transaction type
func (t *Transaction) Class() TxClass {
	return ClassOf(t.Type)
}

// ClassOf maps a transaction type string to its aggregation class
func ClassOf(txType string) TxClass {
	switch txType {
	case TypeMint:
		return ClassMint
	case TypePeerToPeer:
		return ClassPeerToPeer
	default:
		return ClassOther
	}
}

// Columns lists the persisted column names in table order
var Columns = []string{
	"version", "expiration_date", "src", "dest", "type",
	"amount", "gas_price", "max_gas", "sq_num", "pub_key",
	"expiration_unixtime", "gas_used", "sender_sig", "signed_tx_hash",
	"state_root_hash", "event_root_hash", "code_hex", "program",
}
