package writer

import (
	"strings"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
)

// BarWriter defines the interface for writing bars to a destination.
type BarWriter interface {
	// Initialize sets up the writer, potentially creating tables or files.
	Initialize() error
	// Write persists a single bar.
	Write(bar types.Bar) error
	// Finalize completes the writing process (e.g., commits transactions, exports files).
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// OutputPath returns the configured output file path.
	OutputPath() string
}

// createTable matches provider.BarColumns so written files can be served by the
// DuckDB bar client.
const createTable = `
	CREATE TABLE IF NOT EXISTS bars (
		time TIMESTAMP,
		symbol TEXT,
		open DOUBLE,
		high DOUBLE,
		low DOUBLE,
		close DOUBLE,
		volume DOUBLE,
		trade_count BIGINT,
		vwap DOUBLE%s
	)
`

func quote(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
