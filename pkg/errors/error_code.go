package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown  ErrorCode = 1
	ErrCodeCanceled ErrorCode = 2

	// Data errors (100-199). Policy: skip the offending page, never mark done.
	ErrCodeMissingColumns   ErrorCode = 100
	ErrCodeInvalidData      ErrorCode = 101
	ErrCodeNonPositivePrice ErrorCode = 102
	ErrCodeNullValues       ErrorCode = 103
	ErrCodeInvalidTimestamp ErrorCode = 104
	ErrCodeInsufficientData ErrorCode = 105
	ErrCodeNoDataFound      ErrorCode = 106
	ErrCodeLengthMismatch   ErrorCode = 107

	// Configuration and rehydration errors (200-299). Policy: abort the unit, write a sidecar.
	ErrCodeConfig           ErrorCode = 200
	ErrCodeUnknownClass     ErrorCode = 201
	ErrCodeMissingParameter ErrorCode = 202
	ErrCodeInvalidParameter ErrorCode = 203
	ErrCodeInvalidType      ErrorCode = 204
	ErrCodeInvalidWindow    ErrorCode = 205
	ErrCodeVersionMismatch  ErrorCode = 206
	ErrCodeUnsupportedStage ErrorCode = 207

	// Optimiser errors (300-399). Policy: worst-possible score, study continues.
	ErrCodeTrialFailed       ErrorCode = 300
	ErrCodeTrialSkipped      ErrorCode = 301
	ErrCodeNoCompletedTrials ErrorCode = 302

	// I/O errors (400-499). Policy: propagate, no DONE marker.
	ErrCodeIOFailed          ErrorCode = 400
	ErrCodeArtefactNotFound  ErrorCode = 401
	ErrCodeArtefactCorrupted ErrorCode = 402

	// Market data errors (500-599). Policy: per-page retry, then skip the symbol.
	ErrCodeMarketDataFetchFailed ErrorCode = 500
	ErrCodeMarketDataParseFailed ErrorCode = 501
	ErrCodeInvalidProvider       ErrorCode = 502
	ErrCodeStreamFailed          ErrorCode = 503
)

// Category groups error codes by the handling policy the pipeline applies to them.
type Category string

const (
	CategoryUnknown    Category = "unknown"
	CategoryData       Category = "data"
	CategoryConfig     Category = "config"
	CategoryTrial      Category = "trial"
	CategoryIO         Category = "io"
	CategoryMarketData Category = "market_data"
)

// Category returns the policy category of the code.
func (c ErrorCode) Category() Category {
	switch {
	case c >= 100 && c < 200:
		return CategoryData
	case c >= 200 && c < 300:
		return CategoryConfig
	case c >= 300 && c < 400:
		return CategoryTrial
	case c >= 400 && c < 500:
		return CategoryIO
	case c >= 500 && c < 600:
		return CategoryMarketData
	default:
		return CategoryUnknown
	}
}
