package domain

import "errors"

var (
	ErrEmptyName   = errors.New("empty name")
	ErrNameTooLong = errors.New("name too long")
	ErrEmptyRef    = errors.New("empty track reference")
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("already exists")
)
