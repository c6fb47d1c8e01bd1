package shop

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("store not found")
	ErrExists   = errors.New("store already exists")
	ErrInvalid  = errors.New("invalid store")
)

// Shop is a retail store. It owns every reserve account and movement filed under its ID.
// Shops are created once at setup and never modified.
type Shop struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
