package service

import "errors"

var (
	ErrNotAuthenticated  = errors.New("error not authenticated")
	ErrUnauthorized      = errors.New("error session rejected by backend")
	ErrAssetNotFound     = errors.New("error asset not found")
	ErrInvalidEmail      = errors.New("error invalid email")
	ErrEmptyPassword     = errors.New("error empty password")
	ErrPasswordsMismatch = errors.New("error passwords do not match")
	ErrReportTooLarge    = errors.New("error report exceeds file limit")
)
