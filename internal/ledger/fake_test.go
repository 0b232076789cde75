package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"ledgerindex/internal/amount"
	"ledgerindex/internal/models"
)

var (
	mintAccount = strings.Repeat("0", 64)
	userAccount = strings.Repeat("ab", 32)
	peerAccount = strings.Repeat("cd", 32)
)

// rawTx builds a well-formed record; every tenth version is a mint
func rawTx(version uint64) RawTransaction {
	sender := userAccount
	if version%10 == 0 {
		sender = mintAccount
	}
	return RawTransaction{
		Sender:         sender,
		SequenceNumber: version,
		ExpirationTime: 1_600_000_000 + version,
		GasUnitPrice:   0,
		MaxGasAmount:   100_000,
		Program: RawProgram{
			Code: hex.EncodeToString([]byte("move script")),
			Arguments: []RawArgument{
				{Type: "address", Data: peerAccount},
				{Type: "u64", Data: hex.EncodeToString(amount.Encode(version * 1_000_000))},
			},
		},
		SenderPublicKey: "0a0b",
		SenderSignature: "0c0d",
		Info: TransactionInfo{
			GasUsed:               10,
			SignedTransactionHash: "01",
			StateRootHash:         "02",
			EventRootHash:         "03",
		},
	}
}

// encodeRaw renders a record the way the node ships it
func encodeRaw(raw RawTransaction) json.RawMessage {
	data, err := json.Marshal(raw)
	if err != nil {
		panic(err)
	}
	return data
}

// fakeLedger is an in-process remote ledger holding versions 1..head
type fakeLedger struct {
	mu         sync.Mutex
	head       uint64
	headErrs   int
	fetchErrs  int
	corrupt    map[uint64]int
	panics     int
	fetchCalls []uint64
	closed     bool
}

func newFakeLedger(head uint64) *fakeLedger {
	return &fakeLedger{head: head, corrupt: make(map[uint64]int)}
}

func transportErr(method string) error {
	return &TransportError{Method: method, Err: fmt.Errorf("dial tcp 127.0.0.1:8000: connection refused")}
}

func (f *fakeLedger) LatestVersion(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panics > 0 {
		f.panics--
		panic("unexpected response layout")
	}
	if f.headErrs > 0 {
		f.headErrs--
		return 0, transportErr(methodLatestVersion)
	}
	return f.head, nil
}

func (f *fakeLedger) FetchRange(ctx context.Context, start uint64, limit uint64) (*TransactionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls = append(f.fetchCalls, start)
	if f.fetchErrs > 0 {
		f.fetchErrs--
		return nil, transportErr(methodTransactions)
	}

	page := &TransactionPage{FirstVersion: start}
	for v := start; v < start+limit && v <= f.head; v++ {
		tx := rawTx(v)
		if f.corrupt[v] > 0 {
			f.corrupt[v]--
			tx.Sender = "not hex"
		}
		page.Transactions = append(page.Transactions, encodeRaw(tx))
	}
	return page, nil
}

func (f *fakeLedger) AccountState(ctx context.Context, address string) (*models.AccountState, error) {
	return &models.AccountState{Address: address, SequenceNumber: 7}, nil
}

func (f *fakeLedger) MintAccount() string { return mintAccount }

func (f *fakeLedger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
