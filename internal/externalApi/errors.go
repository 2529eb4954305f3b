package externalApi

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound     = errors.New("error not found")
	ErrUnauthorized = errors.New("error unauthorized")
)

// RequestError is a non-successful backend response. Message is the
// backend detail when it sent one, otherwise a fixed fallback.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}
