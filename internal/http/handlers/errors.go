// Package handlers defines the HTTP-layer error codes used by the admin API.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// the domain codes name the operation that failed. Clients branch on the code,
// not on the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "upstream_unavailable",
//	  "message": "sales data source unavailable"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeInvalidAddress      = "invalid_address"
	ErrCodeUnknownReport       = "unknown_report"
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
	ErrCodeRefreshFailed       = "refresh_failed"
	ErrCodeSendFailed          = "send_failed"
	ErrCodeListFailed          = "list_failed"
	ErrCodeUnknownJob          = "unknown_job"
)
