/*
errors.go - Centralized error types for the invoice model and resolver

PURPOSE:
  All domain error values in one place. A failure here aborts processing of
  a single source file; the batch driver logs it and moves on (see the
  pipeline package). Use errors.Is to classify.
*/
package invoice

import "errors"

var (
	// ErrInvalidSpec is returned when a source specification fails
	// fail-fast validation (malformed date, broken YAML shape).
	ErrInvalidSpec = errors.New("invalid invoice spec")

	// ErrInvalidEntity is returned when an entity identifier (GSTIN, PAN)
	// does not match its required format.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrMissingReference is returned when a non-contract invoice omits
	// one of client_id, sender_id or bank_id, or a referenced profile
	// is unknown.
	ErrMissingReference = errors.New("missing reference")

	// ErrContractNotFound is returned when a spec names a contract that
	// does not exist in the contracts directory.
	ErrContractNotFound = errors.New("contract not found")
)
