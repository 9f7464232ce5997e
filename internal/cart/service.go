package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermosa/pos-api/internal/catalog"
	"github.com/hermosa/pos-api/internal/discount"
	"github.com/hermosa/pos-api/internal/money"
)

var (
	// ErrNotFound indicates the product has no line in the cart.
	ErrNotFound = errors.New("cart line not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Service holds one cart per register. Mutations funnel through a single
// mutex so a multi-terminal deployment cannot interleave pricing updates.
type Service struct {
	mu      sync.Mutex
	Catalog *catalog.Service
	carts   map[string][]Line
}

// NewService constructs a cart service backed by the given catalog.
func NewService(cat *catalog.Service) *Service {
	return &Service{Catalog: cat, carts: map[string][]Line{}}
}

// AddInput describes an add-to-cart request. Quantity defaults to one for
// fixed-price products. Price is the negotiated line total and is required
// for bulk products only.
type AddInput struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
	Price     *decimal.Decimal
}

// Add inserts a product into the register's cart or grows an existing line.
//
// Fixed-price products take their unit price from the CATALOG on this path:
// a repeated add recomputes the line as unitPrice * newQuantity. Bulk
// products accumulate the negotiated quantity and total instead. This is
// deliberately distinct from UpdateQuantity, which derives the unit price
// from the existing line.
func (s *Service) Add(register string, in AddInput) (Line, error) {
	if s == nil || s.Catalog == nil {
		return Line{}, errors.New("cart service not configured")
	}
	product, err := s.Catalog.GetProduct(in.ProductID)
	if err != nil {
		return Line{}, err
	}
	bulk, err := s.Catalog.IsBulk(in.ProductID)
	if err != nil {
		return Line{}, err
	}

	qty := in.Quantity
	if bulk {
		if !qty.IsPositive() {
			return Line{}, fmt.Errorf("bulk products require a positive quantity: %w", ErrInvalidInput)
		}
		if in.Price == nil || !in.Price.IsPositive() {
			return Line{}, fmt.Errorf("bulk products require a negotiated total price: %w", ErrInvalidInput)
		}
	} else {
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		if !qty.IsPositive() {
			return Line{}, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
		}
		if product.Price == nil {
			return Line{}, fmt.Errorf("product has no fixed price: %w", ErrInvalidInput)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[register]
	idx := indexOf(lines, in.ProductID)

	newQty := qty
	if idx >= 0 {
		newQty = lines[idx].Quantity.Add(qty)
	}
	if newQty.Cmp(product.StockQuantity) > 0 {
		return Line{}, fmt.Errorf("%s: %w", product.Name, catalog.ErrInsufficientStock)
	}

	var line Line
	if idx >= 0 {
		existing := lines[idx]
		if bulk {
			line = existing.repriced(newQty, existing.Price.Add(*in.Price))
		} else {
			line = existing.repriced(newQty, product.Price.Mul(newQty))
		}
		lines[idx] = line
	} else {
		price := decimal.Zero
		if bulk {
			price = *in.Price
		} else {
			price = product.Price.Mul(qty)
		}
		line = Line{
			ProductID: product.ID,
			Name:      product.Name,
			Bulk:      bulk,
			Quantity:  qty,
			Price:     price,
			VATRate:   product.VATRate,
			VATAmount: money.Percent(price, product.VATRate),
			UnitLabel: product.UnitLabel,
		}
		lines = append(lines, line)
	}
	s.carts[register] = lines
	return line.clone(), nil
}

// UpdateQuantity adjusts an existing line to the given quantity. The unit
// price is derived from the EXISTING line (price/quantity) for bulk and
// fixed-price lines alike, the new price and VAT follow from it, and any
// applied discount is re-resolved against the new price with its original
// spec. Quantities clamp at zero.
func (s *Service) UpdateQuantity(register string, productID uuid.UUID, quantity decimal.Decimal) (Line, error) {
	if s == nil || s.Catalog == nil {
		return Line{}, errors.New("cart service not configured")
	}
	product, err := s.Catalog.GetProduct(productID)
	if err != nil {
		return Line{}, err
	}
	qty := money.ClampQuantity(quantity)
	if qty.Cmp(product.StockQuantity) > 0 {
		return Line{}, fmt.Errorf("%s: %w", product.Name, catalog.ErrInsufficientStock)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[register]
	idx := indexOf(lines, productID)
	if idx < 0 {
		return Line{}, ErrNotFound
	}
	unit := lines[idx].UnitPrice()
	line := lines[idx].repriced(qty, unit.Mul(qty))
	lines[idx] = line
	s.carts[register] = lines
	return line.clone(), nil
}

// Remove deletes a line from the cart.
func (s *Service) Remove(register string, productID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[register]
	idx := indexOf(lines, productID)
	if idx < 0 {
		return ErrNotFound
	}
	s.carts[register] = append(lines[:idx], lines[idx+1:]...)
	return nil
}

// ApplyDiscount validates the spec at the input boundary and freezes the
// resolved amount on the line.
func (s *Service) ApplyDiscount(register string, productID uuid.UUID, spec discount.Spec) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[register]
	idx := indexOf(lines, productID)
	if idx < 0 {
		return Line{}, ErrNotFound
	}
	if err := spec.ValidateInput(lines[idx].Price); err != nil {
		return Line{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	applied := discount.Apply(spec, lines[idx].Price)
	lines[idx].Discount = &applied
	s.carts[register] = lines
	return lines[idx].clone(), nil
}

// RemoveDiscount clears a line's discount.
func (s *Service) RemoveDiscount(register string, productID uuid.UUID) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[register]
	idx := indexOf(lines, productID)
	if idx < 0 {
		return Line{}, ErrNotFound
	}
	lines[idx].Discount = nil
	s.carts[register] = lines
	return lines[idx].clone(), nil
}

// Lines returns a deep copy of the register's cart in insertion order.
func (s *Service) Lines(register string) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[register]
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.clone())
	}
	return out
}

// Clear empties the register's cart.
func (s *Service) Clear(register string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, register)
}

func indexOf(lines []Line, productID uuid.UUID) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
