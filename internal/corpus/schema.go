// SPDX-License-Identifier: Apache-2.0

package corpus

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// seedSchema constrains every seed regardless of the format it was written in.
const seedSchema = `
#Rule: {
	id:          string & !=""
	description: string & !=""
	payerId?:    string
	specialty?:  string
}

#Exemplar: {
	id:         string & !=""
	payerId?:   string
	specialty?: string
	before: {...}
	after: {...}
	note?: string
}

#Seed: {
	rules: [...#Rule]
	exemplars: [...#Exemplar]
}
`

// ValidateSeed checks a parsed seed against the CUE seed schema and rejects
// duplicate rule or exemplar ids.
func ValidateSeed(seed Seed) error {
	if seed.Rules == nil {
		seed.Rules = []Rule{}
	}
	if seed.Exemplars == nil {
		seed.Exemplars = []Exemplar{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(seedSchema).LookupPath(cue.ParsePath("#Seed"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling seed schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(seed))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("corpus seed does not match schema: %s", cueerrors.Details(err, nil))
	}

	seen := make(map[string]bool, len(seed.Rules))
	for _, r := range seed.Rules {
		if seen[r.ID] {
			return fmt.Errorf("corpus seed: duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
	}
	seen = make(map[string]bool, len(seed.Exemplars))
	for _, e := range seed.Exemplars {
		if seen[e.ID] {
			return fmt.Errorf("corpus seed: duplicate exemplar id %q", e.ID)
		}
		if e.Before == nil || e.After == nil {
			return fmt.Errorf("corpus seed: exemplar %q needs both before and after", e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}
