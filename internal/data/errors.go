package data

import (
	"errors"
	"strings"
)

// Error kinds surfaced by the chat core.
var (
	ErrWriteFailed     = errors.New("write failed")
	ErrSubscribeFailed = errors.New("subscribe failed")
	ErrDecodeFailed    = errors.New("decode failed")
)

var (
	// ErrMissingCounterpart is returned by Send when no counterpart profile
	// was supplied. Nothing is written.
	ErrMissingCounterpart = errors.New("counterpart profile is required")
	ErrInvalidID          = errors.New("invalid id")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
)

// SendError reports the failed legs of a send. The three writes are
// independent; a nil leg either succeeded or, for Summary, was not attempted
// because Sender failed.
type SendError struct {
	Sender    error
	Recipient error
	Summary   error
}

func (e *SendError) Error() string {
	var parts []string
	if e.Sender != nil {
		parts = append(parts, "sender copy: "+e.Sender.Error())
	}
	if e.Recipient != nil {
		parts = append(parts, "recipient copy: "+e.Recipient.Error())
	}
	if e.Summary != nil {
		parts = append(parts, "recent message: "+e.Summary.Error())
	}
	return "send: " + strings.Join(parts, "; ")
}

func (e *SendError) Unwrap() []error {
	var errs []error
	for _, err := range []error{e.Sender, e.Recipient, e.Summary} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SendOutcome says which writes of a send were committed.
type SendOutcome struct {
	SenderSaved    bool
	RecipientSaved bool
	SummarySaved   bool
}

// OutcomeOf derives the committed writes from the error returned by Send.
// Errors other than *SendError mean nothing was written.
func OutcomeOf(err error) SendOutcome {
	if err == nil {
		return SendOutcome{SenderSaved: true, RecipientSaved: true, SummarySaved: true}
	}
	var se *SendError
	if !errors.As(err, &se) {
		return SendOutcome{}
	}
	return SendOutcome{
		SenderSaved:    se.Sender == nil,
		RecipientSaved: se.Recipient == nil,
		SummarySaved:   se.Sender == nil && se.Summary == nil,
	}
}
