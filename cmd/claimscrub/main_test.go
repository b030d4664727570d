// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claimFile = `{
  "tradingPartnerId": "STEDI",
  "billingProvider": {"npi": "1999999984", "name": "Happy Doctors Group"},
  "subscriber": {"firstName": "JANE", "lastName": "DOE", "dateOfBirth": "19800102"},
  "claim": {"serviceLines": [{"procedureCode": "99213", "chargeAmount": "150", "unitCount": "1", "serviceDate": "20240105"}]}
}`

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(claimFile), 0o644))
	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"tradingPartnerId": "STEDI"}`), 0o644))

	out, err := runRoot(t, "validate", "--file", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "claim is valid")

	_, err = runRoot(t, "validate", "--file", invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "billingProvider.npi is required")

	_, err = runRoot(t, "validate", "--file", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestBatchCommand_RequiresInput(t *testing.T) {
	_, err := runRoot(t, "batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--input is required")
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "mcp", "suggest", "validate", "retrieve", "batch"} {
		assert.Contains(t, names, want)
	}
}
