// Package repository defines the credential and session stores and the
// error values they share. These sentinel values allow the service layer to
// distinguish "no such row" from "the row changed under us" without
// inspecting driver errors. Infrastructure failures are wrapped with
// apperr.StoreUnavailable so callers can tell an outage apart from a miss.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrSessionNotActive is returned by RotateSession when the predecessor was
// already revoked or expired at the moment of the conditional update. It is
// how the loser of two concurrent rotations learns that it lost.
var ErrSessionNotActive = errors.New("session not active")
