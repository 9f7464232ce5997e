package stores

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested store does not exist.
	ErrNotFound = errors.New("store not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLastStore is returned when deleting the only remaining store.
	ErrLastStore = errors.New("cannot delete the last store")
)

// Store is a physical shop of the chain.
type Store struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	VATNumber string    `json:"vatNumber,omitempty"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service owns the in-memory store registry.
type Service struct {
	mu     sync.Mutex
	stores map[uuid.UUID]Store
	Now    func() time.Time
	NewID  func() uuid.UUID
}

// NewService constructs an empty registry.
func NewService() *Service {
	return &Service{stores: map[uuid.UUID]Store{}, Now: time.Now, NewID: uuid.New}
}

// Create registers a store.
func (s *Service) Create(st Store) (Store, error) {
	if strings.TrimSpace(st.Name) == "" {
		return Store{}, fmt.Errorf("store name required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(st.Currency) == "" {
		st.Currency = "EUR"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == uuid.Nil {
		st.ID = s.NewID()
	}
	st.CreatedAt = s.Now()
	s.stores[st.ID] = st
	return st, nil
}

// Update replaces mutable fields of a store.
func (s *Service) Update(id uuid.UUID, st Store) (Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.stores[id]
	if !ok {
		return Store{}, ErrNotFound
	}
	if strings.TrimSpace(st.Name) != "" {
		existing.Name = st.Name
	}
	if strings.TrimSpace(st.Address) != "" {
		existing.Address = st.Address
	}
	existing.Phone = st.Phone
	existing.Email = st.Email
	existing.VATNumber = st.VATNumber
	if strings.TrimSpace(st.Currency) != "" {
		existing.Currency = st.Currency
	}
	s.stores[id] = existing
	return existing, nil
}

// Delete removes a store. The last remaining store cannot be deleted.
func (s *Service) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[id]; !ok {
		return ErrNotFound
	}
	if len(s.stores) <= 1 {
		return ErrLastStore
	}
	delete(s.stores, id)
	return nil
}

// List returns all stores ordered by name.
func (s *Service) List() []Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Store, 0, len(s.stores))
	for _, st := range s.stores {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a store by id.
func (s *Service) Get(id uuid.UUID) (Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[id]
	if !ok {
		return Store{}, ErrNotFound
	}
	return st, nil
}
