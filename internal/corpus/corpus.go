// SPDX-License-Identifier: Apache-2.0

// Package corpus holds the static rule and exemplar collection used as
// in-context guidance for claim scrubbing, and the payer/specialty filter
// that selects from it.
package corpus

// DefaultSpecialty is used when a request does not name a specialty.
const DefaultSpecialty = "primary_care"

// Rule is a natural-language scrubbing guideline. An empty PayerID or
// Specialty means the rule applies to every payer or specialty.
type Rule struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	PayerID     string `json:"payerId,omitempty" yaml:"payerId,omitempty"`
	Specialty   string `json:"specialty,omitempty" yaml:"specialty,omitempty"`
}

// Exemplar is a worked before/after claim edit. Before and After are claim
// fragments, not full claims.
type Exemplar struct {
	ID        string         `json:"id" yaml:"id"`
	PayerID   string         `json:"payerId,omitempty" yaml:"payerId,omitempty"`
	Specialty string         `json:"specialty,omitempty" yaml:"specialty,omitempty"`
	Before    map[string]any `json:"before" yaml:"before"`
	After     map[string]any `json:"after" yaml:"after"`
	Note      string         `json:"note,omitempty" yaml:"note,omitempty"`
}

// Seed is the on-disk form of the corpus.
type Seed struct {
	Rules     []Rule     `json:"rules" yaml:"rules"`
	Exemplars []Exemplar `json:"exemplars" yaml:"exemplars"`
}

// Retrieved is the subset of the corpus supplied to the model for one request.
type Retrieved struct {
	Rules     []Rule     `json:"rules"`
	Exemplars []Exemplar `json:"exemplars"`
}

// Corpus is read-only after construction and safe for concurrent use.
type Corpus struct {
	rules     []Rule
	exemplars []Exemplar
}

// New builds a Corpus from a seed. The seed slices are copied so later
// changes to the seed do not leak into the corpus.
func New(seed Seed) *Corpus {
	return &Corpus{
		rules:     append([]Rule(nil), seed.Rules...),
		exemplars: append([]Exemplar(nil), seed.Exemplars...),
	}
}

// Len returns the number of rules and exemplars.
func (c *Corpus) Len() (rules, exemplars int) {
	return len(c.rules), len(c.exemplars)
}

// Retrieve returns the rules and exemplars scoped to payerID and specialty.
// An entry matches when each of its scope fields is empty or exactly equal
// to the requested value. Results keep corpus order. An empty specialty is
// treated as DefaultSpecialty.
func (c *Corpus) Retrieve(payerID, specialty string) Retrieved {
	if specialty == "" {
		specialty = DefaultSpecialty
	}

	out := Retrieved{
		Rules:     []Rule{},
		Exemplars: []Exemplar{},
	}
	for _, r := range c.rules {
		if matches(r.PayerID, r.Specialty, payerID, specialty) {
			out.Rules = append(out.Rules, r)
		}
	}
	for _, e := range c.exemplars {
		if matches(e.PayerID, e.Specialty, payerID, specialty) {
			out.Exemplars = append(out.Exemplars, e)
		}
	}
	return out
}

func matches(entryPayer, entrySpecialty, payerID, specialty string) bool {
	return (entryPayer == "" || entryPayer == payerID) &&
		(entrySpecialty == "" || entrySpecialty == specialty)
}
