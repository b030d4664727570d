// SPDX-License-Identifier: Apache-2.0

package claim

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ValidationError reports why a payload was rejected at the boundary.
// Its message is passed through to the caller unchanged.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

const (
	msgNotObject       = "Payload must be an object"
	msgTradingPartner  = "tradingPartnerId is required"
	msgBillingNPI      = "billingProvider.npi is required"
	msgSubscriberName  = "subscriber firstName/lastName required"
	msgServiceLinesMin = "At least one serviceLine is required"
)

// Parse decodes raw JSON into a Payload and validates it. Decoding failures
// (wrong field types, truncated input) are reported as a *ValidationError
// carrying the decoder's message rather than propagated as a raw error.
func Parse(raw []byte) (*Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ValidationError{Msg: msgNotObject}
	}

	var p Payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate performs the shallow structural checks in order, stopping at the
// first failure. Fields beyond these checks may be absent.
func Validate(p *Payload) error {
	switch {
	case p == nil:
		return &ValidationError{Msg: msgNotObject}
	case p.TradingPartnerID == "":
		return &ValidationError{Msg: msgTradingPartner}
	case p.BillingProvider == nil || p.BillingProvider.NPI == "":
		return &ValidationError{Msg: msgBillingNPI}
	case p.Subscriber == nil || p.Subscriber.FirstName == "" || p.Subscriber.LastName == "":
		return &ValidationError{Msg: msgSubscriberName}
	case p.Claim == nil || len(p.Claim.ServiceLines) == 0:
		return &ValidationError{Msg: msgServiceLinesMin}
	}
	return nil
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
