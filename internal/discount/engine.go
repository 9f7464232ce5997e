package discount

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/hermosa/pos-api/internal/money"
)

// Kind identifies how a discount value is interpreted.
type Kind string

const (
	// KindPercentage discounts a percentage of the base amount.
	KindPercentage Kind = "percentage"
	// KindFixed discounts a fixed currency amount.
	KindFixed Kind = "fixed"
)

var (
	// ErrInvalidKind is returned when the discount kind is unknown.
	ErrInvalidKind = errors.New("discount kind must be percentage or fixed")
	// ErrNonPositiveValue is returned for zero or negative discount values.
	ErrNonPositiveValue = errors.New("discount value must be positive")
	// ErrPercentageOutOfRange is returned for percentages above 100.
	ErrPercentageOutOfRange = errors.New("percentage discount cannot exceed 100")
	// ErrExceedsBase is returned at the input boundary when a fixed discount
	// would wipe out or exceed the amount it applies to.
	ErrExceedsBase = errors.New("fixed discount must be smaller than the base amount")
)

var hundred = decimal.NewFromInt(100)

// Spec describes a discount as entered by the operator. The JSON shape matches
// the discount object carried on cart lines and sale records.
type Spec struct {
	Kind  Kind            `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// ValidateInput enforces the user-input boundary rules: positive value,
// percentage within (0, 100], and fixed strictly below the base. Resolve never
// performs these checks itself; callers validate before applying.
func (s Spec) ValidateInput(base money.Amount) error {
	switch s.Kind {
	case KindPercentage:
		if !s.Value.IsPositive() {
			return ErrNonPositiveValue
		}
		if s.Value.Cmp(hundred) > 0 {
			return ErrPercentageOutOfRange
		}
	case KindFixed:
		if !s.Value.IsPositive() {
			return ErrNonPositiveValue
		}
		if s.Value.Cmp(base) >= 0 {
			return ErrExceedsBase
		}
	default:
		return ErrInvalidKind
	}
	return nil
}

// Resolve computes the discount amount for the given base. A non-positive base
// resolves to zero rather than failing, and fixed discounts are silently
// capped at the base. Input validation is the caller's concern.
func Resolve(s Spec, base money.Amount) money.Amount {
	if !base.IsPositive() {
		return decimal.Zero
	}
	if s.Kind == KindPercentage {
		return money.Percent(base, s.Value)
	}
	return money.Min(s.Value, base)
}

// Applied couples a discount spec with the amount it resolved to against a
// specific base. The amount is frozen at application time; any mutation that
// changes the base must call Reapply explicitly.
type Applied struct {
	Spec
	Amount decimal.Decimal `json:"amount"`
}

// Apply resolves the spec against base and freezes the result.
func Apply(s Spec, base money.Amount) Applied {
	return Applied{Spec: s, Amount: Resolve(s, base)}
}

// Reapply re-derives the amount for an existing discount against a new base,
// preserving the original kind and value.
func Reapply(a Applied, base money.Amount) Applied {
	return Apply(a.Spec, base)
}
