package models

import (
	"errors"
)

var (
	ErrNoRecord           = errors.New("models: no matching record found")
	ErrInvalidCredentials = errors.New("models: invalid credentials")
	ErrDuplicateEmail     = errors.New("models: duplicate email")

	ErrUserNotFound     = errors.New("models: user not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrBrandNotFound    = errors.New("brand not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrInvoiceNotFound  = errors.New("invoice not found")

	ErrEmptyLineItems           = errors.New("invoice requires at least one line item")
	ErrInvalidQuantity          = errors.New("quantity must be at least 1")
	ErrInvalidUnitPrice         = errors.New("unit price must not be negative")
	ErrInvalidStatusTransition  = errors.New("invalid invoice status transition")
	ErrInvoiceOwnershipMismatch = errors.New("invoice belongs to another user")
)
