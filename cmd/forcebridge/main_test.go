package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/forcebridge/pkg/connector/core"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/json"
	api "github.com/ajitpratap0/forcebridge/pkg/salesforce"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce/sftest"
	"github.com/ajitpratap0/forcebridge/pkg/table"
	fbtest "github.com/ajitpratap0/forcebridge/pkg/testutil"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(newApp())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(fbtest.TestContext(t))
	return out.String(), err
}

func orgArgs(org *sftest.Org, dir string, extra ...string) []string {
	return append(extra,
		"--username", sftest.Username,
		"--password", sftest.Password,
		"--security-token", sftest.SecurityToken,
		"--domain", org.URL(),
		"--api-version", sftest.APIVersion,
		"--output-dir", dir,
		"--log-level", "error",
	)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "forcebridge v"+version)
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "salesforce_extract")
	assert.Contains(t, out, "salesforce_load")
	assert.Contains(t, out, "salesforce_metadata")
}

func TestExtractWritesTables(t *testing.T) {
	org := sftest.New(t)
	org.AddObject("Account", "Id", "Name")
	org.AddRecords("Account", api.Record{"Name": "Acme"}, api.Record{"Name": "Globex"})
	dir := t.TempDir()
	metricsFile := filepath.Join(dir, "metrics.prom")

	out, err := execute(t, orgArgs(org, dir, "extract",
		"--object", "Account",
		"--expand",
		"--format", "json",
		"--compression", "gzip",
		"--metrics-file", metricsFile,
	)...)
	require.NoError(t, err)
	assert.Contains(t, out, "2 records in 1 pages")

	records, err := table.ReadFile(filepath.Join(dir, "records.json.gz"))
	require.NoError(t, err)
	require.Equal(t, 1, records.Len())
	cell, ok := records.Cell(0, "json_records")
	require.True(t, ok)
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cell.(string)), &decoded))
	assert.Len(t, decoded, 2)

	expanded, err := table.ReadFile(filepath.Join(dir, "records_expanded.json.gz"))
	require.NoError(t, err)
	assert.Equal(t, 2, expanded.Len())

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "forcebridge_api_calls_total")
}

func TestLoadWritesPartitions(t *testing.T) {
	org := sftest.New(t)
	org.AddObject("Contact", "Id", "LastName")
	org.Reject = func(op, object, id string, body api.Record) *sftest.Failure {
		if body["LastName"] == "" {
			return &sftest.Failure{Code: "REQUIRED_FIELD_MISSING", Message: "Required fields are missing: [LastName]"}
		}
		return nil
	}
	dir := t.TempDir()
	input := filepath.Join(dir, "contacts.csv")
	require.NoError(t, os.WriteFile(input, []byte("LastName\nCurie\n\"\"\nLovelace\n"), 0o600))

	out, err := execute(t, orgArgs(org, dir, "load",
		"--object", "Contact",
		"--operation", "Insert",
		"--input", input,
	)...)
	require.NoError(t, err)
	assert.Contains(t, out, "2 succeeded, 1 failed")

	successes, err := table.ReadFile(filepath.Join(dir, core.TableSuccesses+".csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"LastName", "sf__Id"}, successes.Columns)
	assert.Equal(t, 2, successes.Len())

	failures, err := table.ReadFile(filepath.Join(dir, core.TableFailures+".csv"))
	require.NoError(t, err)
	require.Equal(t, 1, failures.Len())
	msg, _ := failures.Cell(0, "sf__Error")
	assert.Contains(t, msg, "REQUIRED_FIELD_MISSING")
	assert.Len(t, org.Records("Contact"), 2)
}

func TestLoadRejectsUnknownOperation(t *testing.T) {
	org := sftest.New(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "contacts.csv")
	require.NoError(t, os.WriteFile(input, []byte("Id\n003\n"), 0o600))

	_, err := execute(t, orgArgs(org, dir, "load",
		"--object", "Contact",
		"--operation", "upsert",
		"--input", input,
	)...)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Empty(t, org.Calls())
}

func TestInvalidOutputFormatMakesNoCalls(t *testing.T) {
	org := sftest.New(t)

	_, err := execute(t, orgArgs(org, t.TempDir(), "metadata", "--format", "parquet")...)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Empty(t, org.Calls())
}

func TestMetadataAuthFailure(t *testing.T) {
	org := sftest.New(t)
	dir := t.TempDir()

	args := orgArgs(org, dir, "metadata")
	args = append(args, "--password", "wrong")
	_, err := execute(t, args...)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Equal(t, []string{sftest.OpLogin}, org.Ops())

	_, statErr := os.Stat(filepath.Join(dir, core.TableMetadata+".csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestConfigFile(t *testing.T) {
	org := sftest.New(t)
	org.AddObject("Lead", "Id", "Company")
	org.AddRecords("Lead", api.Record{"Company": "Initech"})
	dir := t.TempDir()

	t.Setenv("FB_TEST_PASSWORD", sftest.Password)
	cfgFile := filepath.Join(dir, "forcebridge.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
credentials:
  username: `+sftest.Username+`
  password: ${FB_TEST_PASSWORD}
  security_token: `+sftest.SecurityToken+`
  domain: `+org.URL()+`
salesforce:
  api_version: "`+sftest.APIVersion+`"
  query: SELECT Id, Company FROM Lead
output:
  directory: `+dir+`
observability:
  log_level: error
`), 0o600))

	_, err := execute(t, "extract", "--config", cfgFile)
	require.NoError(t, err)
	assert.Empty(t, org.CallsFor(sftest.OpDescribe))

	records, err := table.ReadFile(filepath.Join(dir, "records.csv"))
	require.NoError(t, err)
	cell, _ := records.Cell(0, "json_records")
	assert.Contains(t, cell, "Initech")
}
