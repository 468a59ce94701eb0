package parser

import (
	"fmt"
	"time"
)

// Metadata contains context about the file being parsed: who imports it,
// which source it is attributed to for deduplication, and an optional
// statement currency override for formats that don't carry one per row.
type Metadata struct {
	filePath   string
	source     string
	currency   string
	detectedAt time.Time
}

// NewMetadata creates a Metadata instance with validated required fields.
func NewMetadata(filePath, source string, detectedAt time.Time) (*Metadata, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if source == "" {
		return nil, fmt.Errorf("source cannot be empty")
	}
	if detectedAt.IsZero() {
		return nil, fmt.Errorf("detected time cannot be zero")
	}
	return &Metadata{
		filePath:   filePath,
		source:     source,
		detectedAt: detectedAt,
	}, nil
}

// FilePath returns the file path being parsed.
func (m *Metadata) FilePath() string { return m.filePath }

// Source returns the import source identifier used for duplicate scoping.
func (m *Metadata) Source() string { return m.source }

// Currency returns the statement currency override, or empty when the file
// declares currencies itself.
func (m *Metadata) Currency() string { return m.currency }

// DetectedAt returns the timestamp when the file was detected.
func (m *Metadata) DetectedAt() time.Time { return m.detectedAt }

// SetCurrency sets the statement currency override.
func (m *Metadata) SetCurrency(currency string) { m.currency = currency }
