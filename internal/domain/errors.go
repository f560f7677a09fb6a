package domain

import "errors"

// ErrNotFound is returned when a referenced row does not exist. Callers that
// pass ids they received from elsewhere are expected to handle it.
var ErrNotFound = errors.New("not found")

// ErrNoExternalAccount is returned by the connectivity sync when the user has
// no external payment account id on file yet.
var ErrNoExternalAccount = errors.New("no external payment account on file")
