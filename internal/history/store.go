package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal state of an upload
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// DefaultListLimit is used when List is called with a non-positive limit
const DefaultListLimit = 50

// MaxListLimit caps how many records List returns
const MaxListLimit = 500

var (
	// ErrInvalidRecord is returned when a record fails validation before
	// being stored
	ErrInvalidRecord = errors.New("invalid history record")

	// ErrDuplicate is returned when a record with the same id already exists
	ErrDuplicate = errors.New("history record already exists")
)

// Record is the outcome of one upload task.
type Record struct {
	// ID is the id of the event that produced the record
	ID          uuid.UUID `json:"id"`
	TaskID      int64     `json:"task_id"`
	Path        string    `json:"path"`
	Status      Status    `json:"status"`
	URL         string    `json:"url,omitempty"`
	Message     string    `json:"message,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Validate checks that the record can be stored
func (r Record) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	switch r.Status {
	case StatusSucceeded, StatusFailed, StatusAborted:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, r.Status)
	}
	if r.CompletedAt.IsZero() {
		return fmt.Errorf("%w: completed_at is required", ErrInvalidRecord)
	}
	return nil
}

// Store persists upload records.
type Store interface {
	// Save stores a record. Saving the same record id twice returns ErrDuplicate.
	Save(ctx context.Context, record Record) error

	// List returns up to limit records, most recently completed first.
	List(ctx context.Context, limit int) ([]Record, error)
}

// normalizeLimit maps non-positive limits to DefaultListLimit and caps the rest
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
