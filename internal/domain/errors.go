package domain

import "errors"

var (
	ErrReportNotFound    = errors.New("report not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPaymentsDisabled  = errors.New("payments are disabled")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrUnknownEvent      = errors.New("unsupported payment event")
	ErrInvalidInput      = errors.New("invalid input")
)
