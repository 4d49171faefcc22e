// Package common defines shared sentinel errors used across the oplog
// core and the domain-stack adapters. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Contract violations — raised synchronously to the caller, never swallowed.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidEntry    = errors.New("invalid entry")
	ErrInvalidAddress  = errors.New("invalid address")

	// Peer/network misbehavior — reported via the sync engine's event sink
	// and recovered locally; never propagated synchronously from the engine.
	ErrHashMismatch        = errors.New("hash mismatch")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrTimeout             = errors.New("timeout")
	ErrTransport           = errors.New("transport error")

	// Repository/storage-level errors.
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// Access control.
	ErrUnauthorized = errors.New("unauthorized")
)
