// SPDX-License-Identifier: Apache-2.0

// Package claim defines the canonical professional claim payload accepted for
// scrubbing and the boundary validation applied before any typed logic runs.
package claim

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is the canonical claim representation submitted for scrubbing.
// Field names follow the clearinghouse JSON claim format.
type Payload struct {
	TradingPartnerID string      `json:"tradingPartnerId"`
	ControlNumber    string      `json:"controlNumber,omitempty"`
	BillingProvider  *Provider   `json:"billingProvider"`
	Subscriber       *Subscriber `json:"subscriber"`
	Patient          *Subscriber `json:"patient,omitempty"`
	Claim            *Info       `json:"claim"`
}

// Provider is the billing provider block. NPI and Name are required.
type Provider struct {
	NPI     string   `json:"npi"`
	TaxID   string   `json:"taxId,omitempty"`
	Name    string   `json:"name"`
	Address *Address `json:"address,omitempty"`
}

// Address is a structured postal address.
type Address struct {
	Address1   string `json:"address1,omitempty"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Subscriber describes the insured member, or the patient when the patient is
// not the subscriber. Dates use the YYYYMMDD form.
type Subscriber struct {
	ID           string `json:"id,omitempty"`
	MemberID     string `json:"memberId,omitempty"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	DateOfBirth  string `json:"dateOfBirth"`
	Relationship string `json:"relationship,omitempty"`
}

// Info is the claim body: encounter-level codes and the billed service lines.
type Info struct {
	PatientControlNumber string           `json:"patientControlNumber"`
	TotalChargeAmount    Decimal          `json:"totalChargeAmount,omitzero"`
	PlaceOfServiceCode   string           `json:"placeOfServiceCode"`
	DiagnosisCodes       []string         `json:"diagnosisCodes"`
	ServiceLines         []ServiceLine    `json:"serviceLines"`
	PriorAuthRefNumber   string           `json:"priorAuthRefNumber,omitempty"`
	Attachments          []map[string]any `json:"attachments,omitempty"`
}

// ServiceLine is one billed procedure. DiagnosisPointers are 1-based indices
// into Info.DiagnosisCodes.
type ServiceLine struct {
	ProcedureCode     string   `json:"procedureCode"`
	Modifiers         []string `json:"modifiers,omitempty"`
	ChargeAmount      Decimal  `json:"chargeAmount,omitzero"`
	UnitCount         Decimal  `json:"unitCount,omitzero"`
	DiagnosisPointers []int    `json:"diagnosisPointers"`
	ServiceDate       string   `json:"serviceDate"`
}

// Decimal is a monetary or unit quantity. It accepts a JSON number, a JSON
// string or null and is written back exactly as received, so a claim
// round-trips without changing the type of its amounts. The zero value is an
// absent quantity and is omitted.
type Decimal struct {
	raw json.RawMessage
}

// NewDecimal returns a Decimal written as a JSON string.
func NewDecimal(s string) Decimal {
	raw, _ := json.Marshal(s)
	return Decimal{raw: raw}
}

// String returns the quantity text without JSON quoting. Null and absent
// quantities are empty.
func (d Decimal) String() string {
	if len(d.raw) == 0 || string(d.raw) == "null" {
		return ""
	}
	if d.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(d.raw, &s); err == nil {
			return s
		}
	}
	return string(d.raw)
}

// IsNumber reports whether the quantity was given as a JSON number.
func (d Decimal) IsNumber() bool {
	return len(d.raw) > 0 && d.raw[0] != '"' && string(d.raw) != "null"
}

// IsZero reports an absent quantity.
func (d Decimal) IsZero() bool {
	return len(d.raw) == 0
}

// Equal compares quantities by numeric value when both parse as numbers,
// so 150, "150" and "150.00" are equal.
func (d Decimal) Equal(o Decimal) bool {
	a, b := d.String(), o.String()
	x, errX := strconv.ParseFloat(a, 64)
	y, errY := strconv.ParseFloat(b, 64)
	if errX == nil && errY == nil {
		return x == y
	}
	return a == b
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	if len(d.raw) == 0 {
		return []byte("null"), nil
	}
	return d.raw, nil
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal([]byte(s), &str); err != nil {
			return err
		}
	default:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("decimal: invalid value %s", s)
		}
	}
	d.raw = append(json.RawMessage(nil), s...)
	return nil
}

// Clone returns a deep copy of p so callers can mutate the copy without
// touching the caller's claim.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		// Payload only holds JSON-native values.
		panic(fmt.Sprintf("claim: clone marshal: %v", err))
	}
	var out Payload
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("claim: clone unmarshal: %v", err))
	}
	return &out
}
