// Package services defines the business logic of the sales assistant: the
// webhook pipeline, reply composition, sales queries and message history.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrMessageNotFound indicates that no ledger record exists for the
	// requested message id.
	ErrMessageNotFound = errors.New("message not found")

	// ErrEmptyMessage is returned when an outbound or test message has no
	// text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoRecipient is returned when an outbound message has no recipient.
	ErrNoRecipient = errors.New("recipient is required")

	// ErrSalesUnavailable is returned by Composer.Compose when the sales
	// cache could not be read.
	ErrSalesUnavailable = errors.New("sales data unavailable")
)
