package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidTransition  = errors.New("invalid checkout transition")
	ErrAddressIncomplete  = errors.New("address is incomplete")
	ErrPaymentIncomplete  = errors.New("payment details are incomplete")
	ErrSubmissionInFlight = errors.New("order submission already in progress")
)

// Step names the saga step that failed inside PlaceOrder. Each step leaves
// different state behind, so callers need to know which one broke.
type Step string

const (
	StepAddress Step = "address"
	StepOrder   Step = "order"
	StepItems   Step = "items"
)

// PlaceOrderError tags a storage failure with the saga step it happened in.
type PlaceOrderError struct {
	Step Step
	Err  error
}

func (e *PlaceOrderError) Error() string {
	return fmt.Sprintf("place order failed at %s step: %v", e.Step, e.Err)
}

func (e *PlaceOrderError) Unwrap() error {
	return e.Err
}
