package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermosa/pos-api/internal/money"
)

var (
	// ErrNotFound indicates the requested product or category does not exist.
	ErrNotFound = errors.New("catalog entry not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientStock is returned when a quantity exceeds the available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product is a catalog entry. Price is nil for products sold in bulk, whose
// total is negotiated at sale time. StockQuantity may be fractional for bulk
// products.
type Product struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Price         *decimal.Decimal `json:"price"`
	CategoryID    uuid.UUID        `json:"categoryId"`
	StockQuantity decimal.Decimal  `json:"stockQuantity"`
	UnitLabel     string           `json:"unitLabel,omitempty"`
	VATRate       decimal.Decimal  `json:"vatRate"`
}

// Category groups products and decides whether they are sold in bulk.
type Category struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	IsBulk         bool             `json:"isBulk"`
	DefaultUnit    string           `json:"defaultUnit,omitempty"`
	DefaultVATRate *decimal.Decimal `json:"defaultVatRate,omitempty"`
}

// Service owns the in-memory product and category stores. All access is
// serialized through one mutex so stock checks and decrements cannot race
// between registers.
type Service struct {
	mu         sync.Mutex
	products   map[uuid.UUID]Product
	categories map[uuid.UUID]Category
	NewID      func() uuid.UUID
}

// NewService constructs an empty catalog.
func NewService() *Service {
	return &Service{
		products:   map[uuid.UUID]Product{},
		categories: map[uuid.UUID]Category{},
		NewID:      uuid.New,
	}
}

func (s *Service) newID() uuid.UUID {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.New()
}

// CreateCategory registers a category.
func (s *Service) CreateCategory(c Category) (Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Category{}, fmt.Errorf("category name required: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = s.newID()
	}
	s.categories[c.ID] = c
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (s *Service) ListCategories() []Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetCategory returns a category by id.
func (s *Service) GetCategory(id uuid.UUID) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return Category{}, ErrNotFound
	}
	return c, nil
}

// CreateProduct registers a product. Non-bulk products require a fixed price;
// bulk products must not carry one.
func (s *Service) CreateProduct(p Product) (Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Product{}, fmt.Errorf("product name required: %w", ErrInvalidInput)
	}
	if p.StockQuantity.IsNegative() {
		return Product{}, fmt.Errorf("stock cannot be negative: %w", ErrInvalidInput)
	}
	if p.VATRate.IsNegative() {
		return Product{}, fmt.Errorf("vat rate cannot be negative: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.categories[p.CategoryID]
	if !ok {
		return Product{}, fmt.Errorf("unknown category: %w", ErrInvalidInput)
	}
	if cat.IsBulk {
		p.Price = nil
		if p.UnitLabel == "" {
			p.UnitLabel = cat.DefaultUnit
		}
	} else if p.Price == nil || p.Price.IsNegative() {
		return Product{}, fmt.Errorf("fixed-price product requires a non-negative price: %w", ErrInvalidInput)
	}
	if p.ID == uuid.Nil {
		p.ID = s.newID()
	}
	s.products[p.ID] = p
	return p, nil
}

// UpdateProduct replaces mutable fields of an existing product.
func (s *Service) UpdateProduct(id uuid.UUID, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	if strings.TrimSpace(p.Name) != "" {
		existing.Name = p.Name
	}
	if p.CategoryID != uuid.Nil {
		if _, ok := s.categories[p.CategoryID]; !ok {
			return Product{}, fmt.Errorf("unknown category: %w", ErrInvalidInput)
		}
		existing.CategoryID = p.CategoryID
	}
	if p.Price != nil {
		if p.Price.IsNegative() {
			return Product{}, fmt.Errorf("price cannot be negative: %w", ErrInvalidInput)
		}
		existing.Price = p.Price
	}
	if !p.StockQuantity.IsNegative() {
		existing.StockQuantity = p.StockQuantity
	}
	if p.UnitLabel != "" {
		existing.UnitLabel = p.UnitLabel
	}
	if !p.VATRate.IsNegative() && !p.VATRate.IsZero() {
		existing.VATRate = p.VATRate
	}
	s.products[id] = existing
	return existing, nil
}

// DeleteProduct removes a product from the catalog.
func (s *Service) DeleteProduct(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// ListProducts returns all products ordered by name, optionally filtered by category.
func (s *Service) ListProducts(categoryID uuid.UUID) []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if categoryID != uuid.Nil && p.CategoryID != categoryID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(id uuid.UUID) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// IsBulk reports whether the product's category sells by weight or volume.
func (s *Service) IsBulk(productID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return false, ErrNotFound
	}
	c, ok := s.categories[p.CategoryID]
	if !ok {
		return false, nil
	}
	return c.IsBulk, nil
}

// DecrementStock removes the given quantities atomically. Either every line
// fits within the available stock and all decrements apply, or nothing
// changes and ErrInsufficientStock is returned.
func (s *Service) DecrementStock(quantities map[uuid.UUID]money.Quantity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, qty := range quantities {
		p, ok := s.products[id]
		if !ok {
			return fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		if qty.Cmp(p.StockQuantity) > 0 {
			return fmt.Errorf("product %s: %w", p.Name, ErrInsufficientStock)
		}
	}
	for id, qty := range quantities {
		p := s.products[id]
		p.StockQuantity = p.StockQuantity.Sub(qty)
		s.products[id] = p
	}
	return nil
}

// LowStock returns products whose stock is strictly below the threshold,
// ordered by name.
func (s *Service) LowStock(threshold decimal.Decimal) []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Product
	for _, p := range s.products {
		if p.StockQuantity.Cmp(threshold) < 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
