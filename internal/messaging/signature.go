package messaging

import (
	"errors"
	"net/url"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

// ErrInvalidSignature is returned when a webhook signature does not verify.
var ErrInvalidSignature = errors.New("invalid twilio signature")

// SignatureValidator verifies webhook requests with the account auth token.
type SignatureValidator struct {
	rv client.RequestValidator
}

// NewSignatureValidator returns a validator for authToken.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{rv: client.NewRequestValidator(authToken)}
}

// Validate checks signature against the public URL Twilio called and the
// posted form fields. Only the first value of each field is signed.
func (v *SignatureValidator) Validate(fullURL string, form url.Values, signature string) error {
	if signature == "" {
		return ErrInvalidSignature
	}
	params := make(map[string]string, len(form))
	for k, vals := range form {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	if !v.rv.Validate(fullURL, params, signature) {
		return ErrInvalidSignature
	}
	return nil
}
