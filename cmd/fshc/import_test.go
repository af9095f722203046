package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fsh "github.com/gofhir/fsh"
	"github.com/gofhir/fsh/pkg/config"
	"github.com/gofhir/fsh/pkg/importer"
	"github.com/gofhir/fsh/pkg/logger"
)

func init() {
	logger.Disable()
}

func testConfig() *config.Config {
	return &config.Config{
		FHIRVersion:    fsh.R4,
		Canonical:      "http://example.org",
		MaxInsertDepth: importer.DefaultMaxInsertDepth,
		LogLevel:       "none",
		Output:         config.OutputText,
	}
}

func writeFSH(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestRunImportText(t *testing.T) {
	dir := writeFSH(t, map[string]string{
		"profiles.fsh": `Alias: $LNC = http://loinc.org

Profile: MyObs
Parent: Observation
* insert Common

Instance: example
InstanceOf: MyObs
`,
		"rulesets.fsh": `RuleSet: Common
* status MS
* code = $LNC#1234-5
`,
	})

	var out bytes.Buffer
	ok, err := runImport(context.Background(), testConfig(), []string{dir}, true, &out)
	require.NoError(t, err)
	assert.True(t, ok)

	text := out.String()
	assert.Contains(t, text, "== Import (R4, http://example.org) ==")
	assert.Contains(t, text, "Status: OK")
	assert.Contains(t, text, "Files: 2, Definitions: 1, Instances: 1, Aliases: 1")
	assert.Contains(t, text, "Errors: 0, Warnings: 0")
	assert.NotContains(t, text, "Issues:")
	assert.Contains(t, text, "Metrics:")
}

func TestRunImportJSONReportsErrors(t *testing.T) {
	dir := writeFSH(t, map[string]string{
		"a.fsh": `Profile: P
Parent: Patient
* insert Missing
`,
	})
	cfg := testConfig()
	cfg.Output = config.OutputJSON

	var out bytes.Buffer
	ok, err := runImport(context.Background(), cfg, []string{dir}, false, &out)
	require.NoError(t, err)
	assert.False(t, ok)

	var report ImportOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 1, report.Definitions)
	assert.Nil(t, report.Metrics)
	require.GreaterOrEqual(t, report.Errors, 1)
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, "RULESET_NOT_FOUND", report.Issues[0].MessageID)
	assert.Equal(t, "error", report.Issues[0].Severity)
	assert.Contains(t, report.Issues[0].Location, "a.fsh:3")
}

func TestRunImportStrict(t *testing.T) {
	dir := writeFSH(t, map[string]string{
		"inv.fsh": `Invariant: inv-1
Description: "Bad"
Severity: #error
Expression: "name.where("
`,
	})
	cfg := testConfig()

	var out bytes.Buffer
	ok, err := runImport(context.Background(), cfg, []string{dir}, false, &out)
	require.NoError(t, err)
	assert.True(t, ok, "warnings pass by default")
	assert.Contains(t, out.String(), "WARN  [invariant]")

	cfg.Strict = true
	out.Reset()
	ok, err = runImport(context.Background(), cfg, []string{dir}, false, &out)
	require.NoError(t, err)
	assert.False(t, ok, "warnings fail in strict mode")
}

func TestRunImportMissingPaths(t *testing.T) {
	dir := writeFSH(t, map[string]string{"a.fsh": "Profile: P\nParent: Patient\n"})
	missing := filepath.Join(dir, "missing.fsh")

	var out bytes.Buffer
	ok, err := runImport(context.Background(), testConfig(), []string{dir, missing}, false, &out)
	require.NoError(t, err)
	assert.False(t, ok, "unreadable paths are reported as errors")
	assert.Contains(t, out.String(), "missing.fsh")

	_, err = runImport(context.Background(), testConfig(), []string{missing}, false, &out)
	require.Error(t, err)

	_, err = runImport(context.Background(), testConfig(), []string{t.TempDir()}, false, &out)
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "fshc "+fsh.Version+"\n", out.String())
}
