package story

import "errors"

var (
	ErrNotFound    = errors.New("story not found")
	ErrInvalidData = errors.New("invalid story data")
)
