package domain

import (
	"errors"
	"strings"
	"time"
)

// Core domain models. Transport payloads live in the HTTP adapter; keep these
// decoupled where helpful.

// Status is the disposition assigned to a scanned item.
type Status string

const (
	StatusNone      Status = "none"
	StatusCollected Status = "collected"
	StatusFailed    Status = "failed"
)

// ParseStatus accepts the wire form of a settable status. StatusNone is not
// settable through the classifier; records start there and leave via edits.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusCollected:
		return StatusCollected, true
	case StatusFailed:
		return StatusFailed, true
	}
	return StatusNone, false
}

// Outcome classifies one scan attempt.
type Outcome string

const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeAlreadyScanned Outcome = "already_scanned"
	OutcomeNotExpected    Outcome = "not_expected"
)

// ScanRecord is one accepted scan. Code is the unique key; Timestamp is fixed
// at creation. Status and Carrier are mutable afterwards.
type ScanRecord struct {
	Code              string
	Timestamp         time.Time
	PresentInManifest bool
	Status            Status
	Carrier           *string
}

// ScanResult is the outcome of submitting one code. Record is the freshly
// created record for OutcomeAccepted, the existing record for
// OutcomeAlreadyScanned, and nil for OutcomeNotExpected (unknown codes are
// reported, never stored).
type ScanResult struct {
	Outcome Outcome
	Record  *ScanRecord
}

// ImportResult reports a manifest import.
type ImportResult struct {
	Imported          int
	DuplicatesSkipped int
}

// Snapshot is the derived dashboard view. Carriers counts the whole ledger;
// the *Today fields cover the current station-local day past any daily reset.
type Snapshot struct {
	Carriers       map[string]int
	TotalToday     int
	CollectedToday int
	FailedToday    int
	Source         string
	LastUpdated    time.Time
}

// StatsSummary reports reconciliation progress against the active manifest.
type StatsSummary struct {
	TotalExpected  int
	TotalScanned   int
	TotalMissing   int
	PercentScanned float64
}

// Snapshot sources.
const (
	SourceCache    = "cache"
	SourceComputed = "computed"
	SourceForced   = "forced"
)

// DailyBaseline carries the day's summary across ledger wipes and anchors the
// daily-reset watermark. Records at or before ResetAt are excluded from the
// today counters; Total/Collected/Failed are added on top of what the ledger
// still holds for Day.
type DailyBaseline struct {
	Day       time.Time
	Total     int
	Collected int
	Failed    int
	ResetAt   time.Time
}

// KnownCarriers is the fixed dashboard display set. Snapshots seed these at
// zero; carriers outside the set are still counted.
var KnownCarriers = []string{
	"J&T", "JADLOG", "DIALOGO", "CORREIOS", "CORREIOS PA",
	"LOGAN", "FAVELA LOG", "SAC SERVICE", "DISSUDES",
}

var (
	// ErrEmptyCode rejects codes that are empty after normalization.
	ErrEmptyCode = errors.New("tracking code is empty")
	// ErrEmptyCarrier rejects blank carrier names.
	ErrEmptyCarrier = errors.New("carrier name is empty")
	// ErrNotFound marks lookups for codes with no ledger record.
	ErrNotFound = errors.New("not found")
)

// NormalizeCode canonicalizes a raw tracking code: trimmed, uppercased.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", ErrEmptyCode
	}
	return code, nil
}

// DayOf maps t to its calendar day in loc, encoded as midnight UTC so day
// values compare with Equal regardless of the zone they were computed in.
func DayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
