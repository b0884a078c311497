package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and chain clients
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
//   - ErrNotFound: entity or transaction does not exist
//   - ErrConflict: unique constraint hit (duplicate contract, duplicate signer)
//   - ErrUnavailable: upstream dependency is failing or its breaker is open
//   - ErrInvalidState: entity state forbids the write (signing a fully signed contract)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
