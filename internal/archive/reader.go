package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"ledgerindex/internal/amount"
	"ledgerindex/internal/models"
)

// ReadSnapshot loads the header and every row of a snapshot file. Money columns are
// returned in micro-units whatever scale the file was written with.
func ReadSnapshot(path string) (*Header, []models.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	dec := json.NewDecoder(bufio.NewReader(zr))

	var header Header
	if err := dec.Decode(&header); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header.Format != Format {
		return nil, nil, fmt.Errorf("unexpected snapshot format %q", header.Format)
	}
	if header.SchemaVersion > SchemaVersion {
		return nil, nil, fmt.Errorf("unsupported snapshot schema version %d", header.SchemaVersion)
	}

	var rows []models.Transaction
	for dec.More() {
		var tx models.Transaction
		if err := dec.Decode(&tx); err != nil {
			return nil, nil, fmt.Errorf("failed to read row %d: %w", len(rows), err)
		}
		if err := rescale(&tx, header.AmountScale); err != nil {
			return nil, nil, fmt.Errorf("failed to read row %d: %w", len(rows), err)
		}
		rows = append(rows, tx)
	}

	return &header, rows, nil
}

// rescale converts money columns written with another fixed-point scale; zero
// means micro-units
func rescale(tx *models.Transaction, scale int64) error {
	if scale == 0 || scale == amount.Scale {
		return nil
	}
	for _, v := range []*uint64{&tx.Amount, &tx.GasPrice, &tx.MaxGas, &tx.GasUsed} {
		micros, err := amount.FromScaled(*v, scale)
		if err != nil {
			return fmt.Errorf("version %d: %w", tx.Version, err)
		}
		*v = micros
	}
	return nil
}
