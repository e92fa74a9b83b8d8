package space

import (
	"errors"
	"fmt"
)

var (
	ErrNoSpace       = errors.New("space: space id is required")
	ErrNoHost        = errors.New("space: workspace host is required")
	ErrMessageFailed = errors.New("space: genie message did not complete")
	ErrPollTimeout   = errors.New("space: timed out waiting for genie message")
)

// APIError is a non-2xx response from the workspace API.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("space: api error %d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("space: api error %d: %s", e.StatusCode, e.Message)
}

// MessageError reports a Genie message that ended in a terminal state other
// than COMPLETED.
type MessageError struct {
	ConversationID string
	MessageID      string
	Status         string
	Message        string
}

func (e *MessageError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("space: message %s ended with status %s", e.MessageID, e.Status)
	}
	return fmt.Sprintf("space: message %s ended with status %s: %s", e.MessageID, e.Status, e.Message)
}

func (e *MessageError) Unwrap() error { return ErrMessageFailed }
