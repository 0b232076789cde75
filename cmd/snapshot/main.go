package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"ledgerindex/internal/archive"
	"ledgerindex/internal/models"
	"ledgerindex/internal/storage"
)

func main() {
	// Parse flags
	var (
		file        = flag.String("file", "", "Snapshot file (.jsonl.zst)")
		databaseURL = flag.String("database-url", "", "Restore rows into this PostgreSQL database (empty = inspect only)")
		batchSize   = flag.Int("batch", 1000, "Rows per insert batch when restoring")
	)
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if *file == "" {
		fmt.Println("Usage: snapshot -file <snapshot.jsonl.zst> [-database-url <url>]")
		os.Exit(1)
	}

	header, rows, err := archive.ReadSnapshot(*file)
	if err != nil {
		log.Fatalf("Failed to read snapshot: %v", err)
	}

	fmt.Printf("Format:        %s (schema v%d)\n", header.Format, header.SchemaVersion)
	fmt.Printf("Created:       %s\n", header.CreatedAt)
	fmt.Printf("Rows:          %d\n", len(rows))
	if len(rows) > 0 {
		fmt.Printf("Versions:      %d..%d\n", rows[0].Version, rows[len(rows)-1].Version)
	}

	if *databaseURL == "" {
		return
	}

	ctx := context.Background()
	repo, err := storage.NewPostgresRepository(ctx, *databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := restore(ctx, repo, rows, *batchSize); err != nil {
		log.Fatalf("Restore failed: %v", err)
	}
	fmt.Printf("Restored %d rows\n", len(rows))
}

// restore inserts rows in batches; the target table must not already hold these versions
func restore(ctx context.Context, repo storage.Repository, rows []models.Transaction, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		if err := repo.InsertBatch(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("failed to insert versions %d..%d: %w", rows[start].Version, rows[end-1].Version, err)
		}
	}
	return nil
}
