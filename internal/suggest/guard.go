// SPDX-License-Identifier: Apache-2.0

package suggest

import (
	"errors"
	"strings"

	"github.com/medbill/claimscrub/internal/claim"
)

// identifierRule names one identifying field the model must never change and
// how to copy it back from the original claim. Paths use the normalized form
// produced by normalizePath.
type identifierRule struct {
	path    string
	restore func(dst, src *claim.Payload) bool
}

// errServiceLinesUnmatched reports suggested service lines that cannot be
// paired one-to-one with the original lines.
var errServiceLinesUnmatched = errors.New("suggested service lines cannot be matched to the original lines")

// identifierRules is evaluated in full for every suggestion. Service dates
// are restored separately once the lines have been matched.
var identifierRules = []identifierRule{
	{path: "tradingPartnerId", restore: func(d, s *claim.Payload) bool { return keep(&d.TradingPartnerID, s.TradingPartnerID) }},
	{path: "controlNumber", restore: func(d, s *claim.Payload) bool { return keep(&d.ControlNumber, s.ControlNumber) }},
	{path: "billingProvider.npi", restore: func(d, s *claim.Payload) bool { return keep(&d.BillingProvider.NPI, s.BillingProvider.NPI) }},
	{path: "billingProvider.taxId", restore: func(d, s *claim.Payload) bool { return keep(&d.BillingProvider.TaxID, s.BillingProvider.TaxID) }},
	{path: "billingProvider.name", restore: func(d, s *claim.Payload) bool { return keep(&d.BillingProvider.Name, s.BillingProvider.Name) }},
	{path: "subscriber.id", restore: func(d, s *claim.Payload) bool { return keep(&d.Subscriber.ID, s.Subscriber.ID) }},
	{path: "subscriber.memberId", restore: func(d, s *claim.Payload) bool { return keep(&d.Subscriber.MemberID, s.Subscriber.MemberID) }},
	{path: "subscriber.firstName", restore: func(d, s *claim.Payload) bool { return keep(&d.Subscriber.FirstName, s.Subscriber.FirstName) }},
	{path: "subscriber.lastName", restore: func(d, s *claim.Payload) bool { return keep(&d.Subscriber.LastName, s.Subscriber.LastName) }},
	{path: "subscriber.dateOfBirth", restore: func(d, s *claim.Payload) bool { return keep(&d.Subscriber.DateOfBirth, s.Subscriber.DateOfBirth) }},
	{path: "patient", restore: restorePatient},
	{path: "claim.patientControlNumber", restore: func(d, s *claim.Payload) bool {
		return keep(&d.Claim.PatientControlNumber, s.Claim.PatientControlNumber)
	}},
	{path: serviceDatePath},
}

const serviceDatePath = "claim.serviceLines[].serviceDate"

// guardIdentifiers copies every protected identifier from original into
// suggested and drops reported changes that touch one. It returns the kept
// changes and the paths that had to be restored. Both claims must have
// passed validation. It fails with errServiceLinesUnmatched, leaving
// suggested untouched, when service dates cannot be attributed to lines.
func guardIdentifiers(original, suggested *claim.Payload, changes []Change) ([]Change, []string, error) {
	lines, ok := matchServiceLines(original.Claim.ServiceLines, suggested.Claim.ServiceLines)
	if !ok {
		return nil, nil, errServiceLinesUnmatched
	}

	var restored []string
	for _, rule := range identifierRules {
		if rule.restore != nil && rule.restore(suggested, original) {
			restored = append(restored, rule.path)
		}
	}
	if restoreServiceDates(suggested.Claim.ServiceLines, original.Claim.ServiceLines, lines) {
		restored = append(restored, serviceDatePath)
	}

	kept := make([]Change, 0, len(changes))
	for _, c := range changes {
		if touchesIdentifier(c.Path) {
			continue
		}
		kept = append(kept, c)
	}
	return kept, restored, nil
}

// keep sets *dst to want and reports whether it differed.
func keep(dst *string, want string) bool {
	if *dst == want {
		return false
	}
	*dst = want
	return true
}

// restorePatient keeps the patient identity block as received. A patient
// block the original did not carry is removed.
func restorePatient(d, s *claim.Payload) bool {
	switch {
	case s.Patient == nil && d.Patient == nil:
		return false
	case s.Patient == nil:
		d.Patient = nil
		return true
	case d.Patient == nil:
		p := *s.Patient
		d.Patient = &p
		return true
	}
	changed := keep(&d.Patient.ID, s.Patient.ID)
	changed = keep(&d.Patient.MemberID, s.Patient.MemberID) || changed
	changed = keep(&d.Patient.FirstName, s.Patient.FirstName) || changed
	changed = keep(&d.Patient.LastName, s.Patient.LastName) || changed
	changed = keep(&d.Patient.DateOfBirth, s.Patient.DateOfBirth) || changed
	return changed
}

// restoreServiceDates gives every matched line the date of the original line
// it came from. Lines the model appended keep the date it gave them.
func restoreServiceDates(dst, src []claim.ServiceLine, match []int) bool {
	changed := false
	for i, j := range match {
		if j >= 0 {
			changed = keep(&dst[i].ServiceDate, src[j].ServiceDate) || changed
		}
	}
	return changed
}

// matchServiceLines pairs each suggested line with the original line it was
// derived from: match[i] is the original index of suggested line i, or -1 for
// a line the model added. Lines pair first by procedure code and charge,
// keeping their position when possible. Lines left over pair by position
// only when the model kept the line count; otherwise the pairing is
// ambiguous and ok is false.
func matchServiceLines(original, suggested []claim.ServiceLine) (match []int, ok bool) {
	match = make([]int, len(suggested))
	used := make([]bool, len(original))
	for i, line := range suggested {
		match[i] = -1
		if i < len(original) && sameService(original[i], line) {
			match[i], used[i] = i, true
		}
	}
	for i, line := range suggested {
		if match[i] >= 0 {
			continue
		}
		for j := range original {
			if !used[j] && sameService(original[j], line) {
				match[i], used[j] = j, true
				break
			}
		}
	}

	var leftSuggested, leftOriginal []int
	for i, j := range match {
		if j < 0 {
			leftSuggested = append(leftSuggested, i)
		}
	}
	for j, u := range used {
		if !u {
			leftOriginal = append(leftOriginal, j)
		}
	}

	switch {
	case len(leftSuggested) == 0, len(leftOriginal) == 0:
		// Dropped or appended lines only.
		return match, true
	case len(suggested) == len(original):
		for k, i := range leftSuggested {
			match[i] = leftOriginal[k]
		}
		return match, true
	}
	return nil, false
}

func sameService(a, b claim.ServiceLine) bool {
	return a.ProcedureCode == b.ProcedureCode && a.ChargeAmount.Equal(b.ChargeAmount)
}

// touchesIdentifier reports whether a change path addresses a protected
// identifier or something inside one.
func touchesIdentifier(path string) bool {
	normalized := normalizePath(path)
	for _, rule := range identifierRules {
		if normalized == rule.path || strings.HasPrefix(normalized, rule.path+".") {
			return true
		}
	}
	return false
}

// normalizePath converts dotted ("claim.serviceLines[0].serviceDate"),
// dotted-numeric ("claim.serviceLines.0.serviceDate") and JSON pointer
// ("/claim/serviceLines/0/serviceDate") locators to one form with list
// indices erased: "claim.serviceLines[].serviceDate".
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")

	sep := '.'
	if strings.HasPrefix(path, "/") {
		sep = '/'
	}
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == sep })

	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		name, indexed := seg, false
		if i := strings.IndexByte(seg, '['); i >= 0 {
			name, indexed = seg[:i], true
		}
		if isIndex(name) {
			if len(out) > 0 && !strings.HasSuffix(out[len(out)-1], "[]") {
				out[len(out)-1] += "[]"
			}
			continue
		}
		if indexed {
			name += "[]"
		}
		out = append(out, name)
	}
	return strings.Join(out, ".")
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
