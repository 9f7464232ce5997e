package customer

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
	// ErrNotFound indicates the requested customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Customer is a loyalty record maintained by the shops.
type Customer struct {
	ID             uuid.UUID  `json:"id"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone,omitempty"`
	Address        string     `json:"address,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastPurchase   *time.Time `json:"lastPurchase,omitempty"`
	TotalPurchases int        `json:"totalPurchases"`
}

// FullName joins first and last name for display and receipts.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Service owns the in-memory customer store.
type Service struct {
	mu        sync.Mutex
	customers map[uuid.UUID]Customer
	Now       func() time.Time
	NewID     func() uuid.UUID
}

// NewService constructs an empty customer store.
func NewService() *Service {
	return &Service{customers: map[uuid.UUID]Customer{}, Now: time.Now, NewID: uuid.New}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create registers a new customer.
func (s *Service) Create(c Customer) (Customer, error) {
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return Customer{}, fmt.Errorf("first and last name required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Email) == "" {
		return Customer{}, fmt.Errorf("email required: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = s.NewID()
	}
	c.CreatedAt = s.now()
	c.LastPurchase = nil
	c.TotalPurchases = 0
	s.customers[c.ID] = c
	return c, nil
}

// Update replaces a customer's contact fields, preserving purchase history.
func (s *Service) Update(id uuid.UUID, c Customer) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	if strings.TrimSpace(c.FirstName) != "" {
		existing.FirstName = c.FirstName
	}
	if strings.TrimSpace(c.LastName) != "" {
		existing.LastName = c.LastName
	}
	if strings.TrimSpace(c.Email) != "" {
		existing.Email = c.Email
	}
	existing.Phone = c.Phone
	existing.Address = c.Address
	existing.Notes = c.Notes
	s.customers[id] = existing
	return existing, nil
}

// Delete removes a customer record.
func (s *Service) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

// List returns all customers ordered by last name.
func (s *Service) List() []Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out
}

// Get returns a customer by id.
func (s *Service) Get(id uuid.UUID) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

// RecordPurchase bumps the purchase counter and last-purchase timestamp,
// called by checkout after a sale is committed.
func (s *Service) RecordPurchase(id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return ErrNotFound
	}
	c.TotalPurchases++
	c.LastPurchase = &at
	s.customers[id] = c
	return nil
}
