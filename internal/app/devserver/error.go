package devserver

import "errors"

var (
	ErrEmailTaken    = errors.New("email is already taken")
	ErrUnknownUser   = errors.New("user not found")
	ErrWrongPassword = errors.New("invalid password")
	ErrStoryNotFound = errors.New("story not found")
	ErrBadToken      = errors.New("invalid token")
)
