package errors

import "fmt"

var (
	ErrChatNotFound        = fmt.Errorf("chat not found")
	ErrChatAlreadyExists   = fmt.Errorf("chat already exists")
	ErrMessageNotFound     = fmt.Errorf("message not found")
	ErrMalformedFrame      = fmt.Errorf("invalid message format")
	ErrResolverUnavailable = fmt.Errorf("membership resolver unavailable")
	ErrContentTooLong      = fmt.Errorf("content exceeds maximum length")
	ErrInvalidToken        = fmt.Errorf("invalid token")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrEmptyWords          = fmt.Errorf("no words have been found")
)
