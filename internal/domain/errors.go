package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidResource = errors.New("invalid resource. Supported resources are: people, films")
)
