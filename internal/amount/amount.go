// Package amount converts between the ledger's fixed-point wire representation and
// decimal values. The remote ledger scales every money-like quantity (amount, gas price,
// max gas, gas used) by 1,000,000 and ships it as an 8-byte little-endian unsigned integer.
package amount

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Scale is the number of micro-units in one whole unit.
const Scale = 1_000_000

// Decimals is the number of fractional digits carried by the fixed-point format.
const Decimals = 6

// WireSize is the byte length of an encoded value.
const WireSize = 8

var (
	// ErrNegative is returned when a negative decimal is converted to micro-units.
	ErrNegative = errors.New("amount: negative value")
	// ErrPrecision is returned when a decimal has more than six fractional digits.
	ErrPrecision = errors.New("amount: more than 6 fractional digits")
	// ErrOverflow is returned when a decimal does not fit in 64 bits of micro-units.
	ErrOverflow = errors.New("amount: value overflows uint64 micro-units")
	// ErrWireSize is returned when an encoded value is not exactly 8 bytes.
	ErrWireSize = errors.New("amount: encoded value must be 8 bytes")
)

// ToDecimal converts micro-units to an exact decimal.
func ToDecimal(micros uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(micros), -Decimals)
}

// FromDecimal converts a decimal to micro-units without rounding.
func FromDecimal(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}

	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrPrecision
	}

	n := scaled.BigInt()
	if !n.IsUint64() {
		return 0, ErrOverflow
	}
	return n.Uint64(), nil
}

// Encode packs micro-units into the 8-byte little-endian wire format.
func Encode(micros uint64) []byte {
	buf := make([]byte, WireSize)
	binary.LittleEndian.PutUint64(buf, micros)
	return buf
}

// Decode unpacks the 8-byte little-endian wire format.
func Decode(b []byte) (uint64, error) {
	if len(b) != WireSize {
		return 0, fmt.Errorf("%w: got %d", ErrWireSize, len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// FromScaled converts a value counted in 1/scale units to micro-units. It lets rows
// written with a different fixed-point scale be read back exactly; a value that
// cannot be expressed in micro-units is rejected rather than rounded.
func FromScaled(v uint64, scale int64) (uint64, error) {
	if scale <= 0 {
		return 0, fmt.Errorf("amount: invalid scale %d", scale)
	}
	if scale == Scale {
		return v, nil
	}
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0).Div(decimal.NewFromInt(scale))
	return FromDecimal(d)
}

// Total accumulates micro-unit values without overflowing
type Total struct {
	micros big.Int
}

// Add adds micros to the total
func (t *Total) Add(micros uint64) {
	t.micros.Add(&t.micros, new(big.Int).SetUint64(micros))
}

// Decimal returns the total in whole units
func (t *Total) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).Set(&t.micros), -Decimals)
}
