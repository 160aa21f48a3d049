package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrPositionClosed  = errors.New("position already closed")
	ErrInvalidAddress  = errors.New("invalid wallet address")
	ErrInvalidPosition = errors.New("invalid position parameters")
	ErrPriceMissing    = errors.New("price unavailable")
)
