// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without string matching. For example, ErrNotFound covers
// any lookup of a missing row, while ErrEmailExists signals a
// duplicate-key violation on the users table.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist (or, for
// default listings, exists only in soft-deleted form). Handlers should
// translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert into the users table hits
// the unique email constraint. Handlers should translate this into an
// HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")
