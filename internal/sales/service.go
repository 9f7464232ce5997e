package sales

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no sale exists for the given id.
	ErrNotFound = errors.New("sale not found")
	// ErrDuplicateID indicates a sale with the same id was already recorded.
	ErrDuplicateID = errors.New("sale id already recorded")
	// ErrAlreadyRefunded is returned on a second refund attempt.
	ErrAlreadyRefunded = errors.New("sale already refunded")
	// ErrReasonRequired is returned when a refund carries no reason.
	ErrReasonRequired = errors.New("refund reason is required")
)

// Service owns the append-only sale history and the refund transition.
type Service struct {
	mu      sync.Mutex
	records []Record
	byID    map[uuid.UUID]int
	Now     func() time.Time
}

// NewService constructs an empty sale history.
func NewService() *Service {
	return &Service{byID: map[uuid.UUID]int{}, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Append records a new sale. Sale ids are unique within the history.
func (s *Service) Append(rec Record) error {
	if rec.ID == uuid.Nil {
		return errors.New("sale id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[rec.ID]; exists {
		return ErrDuplicateID
	}
	s.byID[rec.ID] = len(s.records)
	s.records = append(s.records, rec.Clone())
	return nil
}

// List returns the history in insertion order as deep copies.
func (s *Service) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out
}

// Get returns a single sale by id.
func (s *Service) Get(id uuid.UUID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.records[idx].Clone(), nil
}

// Refund transitions a sale from active to refunded. The transition is
// one-way: a second refund is rejected and the first refund's date and
// reason stay untouched. Inventory and customer counters are deliberately
// not reversed.
func (s *Service) Refund(id uuid.UUID, reason string) (Record, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Record{}, ErrReasonRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if s.records[idx].Refunded {
		return Record{}, ErrAlreadyRefunded
	}
	when := s.now()
	s.records[idx].Refunded = true
	s.records[idx].RefundDate = &when
	s.records[idx].RefundReason = reason
	return s.records[idx].Clone(), nil
}
