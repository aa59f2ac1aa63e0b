package domain

import "errors"

var (
	ErrLoanNotFound   = errors.New("loan application not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrTokenNotFound  = errors.New("token not found")
	ErrTooManyRows    = errors.New("too many rows for export")
	ErrExportNotFound = errors.New("export not found")
	ErrUnknownReport  = errors.New("unknown report")
)
