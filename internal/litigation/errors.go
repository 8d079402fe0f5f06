package litigation

import "errors"

var (
	// ErrCredential means the user's mailbox credential is missing or could
	// not be refreshed.
	ErrCredential = errors.New("mailbox credential unavailable")
	// ErrMailbox means the mailbox search itself failed.
	ErrMailbox           = errors.New("mailbox unavailable")
	ErrDispatch          = errors.New("dispatch failed")
	ErrMalformedAmount   = errors.New("malformed amount")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCaseNotFound      = errors.New("case not found")
)
