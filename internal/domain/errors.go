// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates invalid caller-supplied input. It is never
// retried automatically; the HTTP layer maps it to 400 and the dialog
// engine re-prompts.
var ErrValidation = errors.New("validation failed")

// ErrRemoved indicates a subscriber was deregistered because the portal
// permanently rejected its refresh token.
var ErrRemoved = errors.New("subscriber removed")

// ErrUnauthorized indicates a chat has no subscriber record bound to a
// portal identity.
var ErrUnauthorized = errors.New("not authorized")
