package queue

import "errors"

var (
	// ErrEmpty is returned by ReceiveOne when no message is visible.
	ErrEmpty = errors.New("queue: no messages")

	// ErrInvalidMessage is returned when sending an empty body.
	ErrInvalidMessage = errors.New("queue: message body is empty")
)
