package orders

import (
	"errors"
	"fmt"
)

// validation
var (
	ErrMissingBuyer    = errors.New("buyer id is required")
	ErrEmptyCart       = errors.New("order must contain at least one item")
	ErrMissingProduct  = errors.New("product id is required")
	ErrInvalidQuantity = errors.New("quantity must be positive with at most two decimals")
	ErrMissingAddress  = errors.New("delivery address is required")
	ErrInvalidStatus   = errors.New("invalid status")
)

// not found
var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
)

// conflict
var (
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient quantity")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrForbidden          = errors.New("actor not allowed")
)

// ProductError names the cart line that aborted a placement.
type ProductError struct {
	ProductID string
	Err       error
}

func (e *ProductError) Error() string { return fmt.Sprintf("product %s: %v", e.ProductID, e.Err) }

func (e *ProductError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	for _, target := range []error{ErrMissingBuyer, ErrEmptyCart, ErrMissingProduct, ErrInvalidQuantity, ErrMissingAddress, ErrInvalidStatus} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrOrderNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrProductUnavailable) || errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidTransition)
}
