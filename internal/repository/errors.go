// Package repository implements persistence for user accounts on top of
// database/sql. The sentinel errors defined here let the service layer
// distinguish failure scenarios without inspecting driver error strings.
package repository

import "errors"

// ErrUserNotFound is returned when a lookup matches no row. The service
// layer folds it into the generic invalid-credentials outcome so usernames
// cannot be enumerated through the login endpoint.
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameExists is returned when an insert violates the unique index on
// users.username.
var ErrUsernameExists = errors.New("username already exists")
