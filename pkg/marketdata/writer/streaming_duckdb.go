package writer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	_ "github.com/marcboeker/go-duckdb"
)

// StreamingDuckDBWriter appends streamed bars to a parquet file that persists across
// restarts. Rows are keyed by (symbol, time); a later bar for the same key replaces
// the earlier one. The file is named stream_bars_{interval}.parquet.
type StreamingDuckDBWriter struct {
	db         *sql.DB
	outputPath string
	mu         sync.Mutex
	pending    int
	flushEvery int
}

// NewStreamingDuckDBWriter writes into dataDir and exports after every flushEvery bars.
func NewStreamingDuckDBWriter(dataDir, interval string, flushEvery int) *StreamingDuckDBWriter {
	if flushEvery <= 0 {
		flushEvery = 1
	}

	return &StreamingDuckDBWriter{
		db:         nil,
		outputPath: filepath.Join(dataDir, fmt.Sprintf("stream_bars_%s.parquet", interval)),
		mu:         sync.Mutex{},
		pending:    0,
		flushEvery: flushEvery,
	}
}

// Initialize opens the database and loads any existing file.
func (w *StreamingDuckDBWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf(createTable, ",\n\t\tPRIMARY KEY (symbol, time)")); err != nil {
		db.Close()

		return fmt.Errorf("failed to create table: %w", err)
	}

	if _, err := os.Stat(w.outputPath); err == nil {
		load := fmt.Sprintf(`INSERT INTO bars SELECT * FROM read_parquet('%s') ON CONFLICT (symbol, time) DO NOTHING`, quote(w.outputPath))
		if _, err := db.Exec(load); err != nil {
			db.Close()

			return fmt.Errorf("failed to load %s: %w", w.outputPath, err)
		}
	}

	w.db = db

	return nil
}

// Write upserts a bar and exports when enough bars are pending.
func (w *StreamingDuckDBWriter) Write(bar types.Bar) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return fmt.Errorf("writer not initialized")
	}

	_, err := w.db.Exec(`
		INSERT INTO bars (time, symbol, open, high, low, close, volume, trade_count, vwap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, time) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			trade_count = excluded.trade_count,
			vwap = excluded.vwap
	`, bar.Time.UTC(), bar.Symbol, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.TradeCount, bar.VWAP)
	if err != nil {
		return fmt.Errorf("failed to upsert bar: %w", err)
	}

	w.pending++
	if w.pending < w.flushEvery {
		return nil
	}

	return w.export()
}

// Flush forces an export.
func (w *StreamingDuckDBWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return fmt.Errorf("writer not initialized")
	}

	return w.export()
}

// Finalize exports the data and returns the output path.
func (w *StreamingDuckDBWriter) Finalize() (string, error) {
	if err := w.Flush(); err != nil {
		return "", err
	}

	return w.outputPath, nil
}

// OutputPath returns the parquet file path.
func (w *StreamingDuckDBWriter) OutputPath() string {
	return w.outputPath
}

// Close releases database resources without exporting.
func (w *StreamingDuckDBWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return nil
	}

	err := w.db.Close()
	w.db = nil

	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

func (w *StreamingDuckDBWriter) export() error {
	query := fmt.Sprintf(`COPY (SELECT * FROM bars ORDER BY symbol, time) TO '%s' (FORMAT PARQUET)`, quote(w.outputPath))
	if _, err := w.db.Exec(query); err != nil {
		return fmt.Errorf("failed to export to parquet: %w", err)
	}

	w.pending = 0

	return nil
}

var _ BarWriter = (*StreamingDuckDBWriter)(nil)
