package ledger

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledgerindex/internal/amount"
	"ledgerindex/internal/models"
)

// ErrDecode is returned for a record that cannot be turned into a row
var ErrDecode = errors.New("ledger decode error")

// ExpirationDateLayout formats the clamped expiration timestamp
const ExpirationDateLayout = "2006-01-02 15:04:05"

// Codec turns raw ledger records into storage rows
type Codec struct {
	mintAccount string
}

// NewCodec creates a Codec that classifies transactions sent by mintAccount as mints
func NewCodec(mintAccount string) *Codec {
	return &Codec{mintAccount: strings.ToLower(mintAccount)}
}

// DecodePage decodes the contiguous run of records starting at want. Decoding stops
// at the first record that fails, so the result never has a gap; the caller fetches
// the rest again on its next round. The returned error describes the first failure.
func (c *Codec) DecodePage(page *TransactionPage, want uint64) ([]models.Transaction, error) {
	if page == nil || len(page.Transactions) == 0 {
		return nil, nil
	}
	if page.FirstVersion != want {
		return nil, fmt.Errorf("%w: page starts at version %d, expected %d", ErrDecode, page.FirstVersion, want)
	}

	txs := make([]models.Transaction, 0, len(page.Transactions))
	for i := range page.Transactions {
		version := page.FirstVersion + uint64(i)
		tx, err := c.DecodeRaw(version, page.Transactions[i])
		if err != nil {
			slog.Warn("Dropping undecodable tail of batch",
				"version", version,
				"kept", len(txs),
				"dropped", len(page.Transactions)-i,
				"error", err)
			return txs, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// DecodeRaw unmarshals one record as shipped by the node and converts it
func (c *Codec) DecodeRaw(version uint64, data json.RawMessage) (models.Transaction, error) {
	var raw RawTransaction
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Transaction{}, versionError(version, fmt.Errorf("record layout: %v", err))
	}
	return c.Decode(version, &raw)
}

// Decode converts one raw record committed at version
func (c *Codec) Decode(version uint64, raw *RawTransaction) (models.Transaction, error) {
	sender, err := accountField("sender", raw.Sender)
	if err != nil {
		return models.Transaction{}, versionError(version, err)
	}

	// Transfer scripts carry the receiver first and the amount second
	var dest string
	var micros uint64
	args := raw.Program.Arguments
	if len(args) > 0 {
		if dest, err = accountField("argument 0", args[0].Data); err != nil {
			return models.Transaction{}, versionError(version, err)
		}
	}
	if len(args) > 1 {
		data, err := hex.DecodeString(args[1].Data)
		if err != nil {
			return models.Transaction{}, versionError(version, fmt.Errorf("argument 1: %v", err))
		}
		if micros, err = amount.Decode(data); err != nil {
			return models.Transaction{}, versionError(version, fmt.Errorf("argument 1: %v", err))
		}
	}

	code, err := hex.DecodeString(raw.Program.Code)
	if err != nil {
		return models.Transaction{}, versionError(version, fmt.Errorf("program code: %v", err))
	}
	program, err := json.Marshal(raw.Program)
	if err != nil {
		return models.Transaction{}, versionError(version, fmt.Errorf("program: %v", err))
	}

	expiration := ClampExpiration(raw.ExpirationTime)

	tx := models.Transaction{
		Version:            version,
		ExpirationDate:     time.Unix(expiration, 0).UTC().Format(ExpirationDateLayout),
		Src:                sender,
		Dest:               dest,
		Type:               c.classify(sender, raw.Kind),
		Amount:             micros,
		GasPrice:           raw.GasUnitPrice,
		MaxGas:             raw.MaxGasAmount,
		SqNum:              raw.SequenceNumber,
		ExpirationUnixtime: expiration,
		GasUsed:            raw.Info.GasUsed,
		CodeHex:            hex.Dump(code),
		Program:            string(program),
	}

	fields := []struct {
		name string
		in   string
		out  *string
	}{
		{"sender_public_key", raw.SenderPublicKey, &tx.PubKey},
		{"sender_signature", raw.SenderSignature, &tx.SenderSig},
		{"signed_transaction_hash", raw.Info.SignedTransactionHash, &tx.SignedTxHash},
		{"state_root_hash", raw.Info.StateRootHash, &tx.StateRootHash},
		{"event_root_hash", raw.Info.EventRootHash, &tx.EventRootHash},
	}
	for _, f := range fields {
		if *f.out, err = hexField(f.name, f.in); err != nil {
			return models.Transaction{}, versionError(version, err)
		}
	}

	return tx, nil
}

// Mints are recognized by sender; otherwise the node's kind wins over the default.
func (c *Codec) classify(sender, kind string) string {
	if sender == c.mintAccount {
		return models.TypeMint
	}
	if kind != "" {
		return kind
	}
	return models.TypePeerToPeer
}

// ClampExpiration bounds an expiration timestamp so it always converts to a date
func ClampExpiration(ts uint64) int64 {
	if ts > uint64(models.MaxExpirationUnixtime) {
		return models.MaxExpirationUnixtime
	}
	return int64(ts)
}

// hexField validates a hex string and normalizes it to lower case
func hexField(name, s string) (string, error) {
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%s: %v", name, err)
	}
	return strings.ToLower(s), nil
}

// accountField accepts only a 64 character hex account id
func accountField(name, s string) (string, error) {
	if !models.IsAccountID(s) {
		return "", fmt.Errorf("%s: malformed account id %q", name, s)
	}
	return strings.ToLower(s), nil
}

func versionError(version uint64, err error) error {
	return fmt.Errorf("%w: version %d: %v", ErrDecode, version, err)
}
