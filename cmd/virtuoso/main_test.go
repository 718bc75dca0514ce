package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pingYAML = `id: comp_ping
name: Ping
version: "1.0"
accounts:
  - alias: alice
    jid: alice@example.com
stanzas:
  - id: s1
    type: connect
    accountAlias: alice
    description: connect
    data: {}
  - id: s2
    type: send
    accountAlias: alice
    description: ping
    data:
      xml: <iq type="get" id="p1" to="example.com"><ping xmlns="urn:xmpp:ping"/></iq>
  - id: s3
    type: cue
    accountAlias: alice
    description: pong
    data:
      matchType: id
      matchExpression: p1
      timeout: 1000
  - id: s4
    type: disconnect
    accountAlias: alice
    description: disconnect
    data: {}
`

// run executes the CLI with a file store rooted in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--store", "file", "--data-dir", dir, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_Workflow(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ping.yaml")
	require.NoError(t, os.WriteFile(file, []byte(pingYAML), 0644))

	out, err := run(t, dir, "validate", file)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Composition comp_ping is valid (4 stanzas)")

	out, err = run(t, dir, "import", file)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported")
	fields := strings.Fields(out)
	id := fields[len(fields)-1]
	assert.True(t, strings.HasPrefix(id, "comp_"), id)

	out, err = run(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Ping")

	out, err = run(t, dir, "show", "--mermaid=false", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"matchExpression": "p1"`)

	out, err = run(t, dir, "play", "--loopback", "--json=false", id)
	require.NoError(t, err, out)
	assert.Contains(t, out, "**passed**")

	out, err = run(t, dir, "performances")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "passed")

	out, err = run(t, dir, "show", "--mermaid", id)
	require.NoError(t, err)
	assert.Contains(t, out, "sequenceDiagram")
	assert.Contains(t, out, "alice->>+Server: connect")

	exported := filepath.Join(dir, "out", "ping.json")
	out, err = run(t, dir, "export", id, exported)
	require.NoError(t, err, out)
	assert.FileExists(t, exported)

	out, err = run(t, dir, "delete", id)
	require.NoError(t, err, out)
	_, err = run(t, dir, "show", id)
	assert.Error(t, err)
}

func TestCLI_PlayFailureExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "silent.yaml")
	yaml := strings.Replace(pingYAML, "matchExpression: p1", "matchExpression: never", 1)
	yaml = strings.Replace(yaml, "timeout: 1000", "timeout: 50", 1)
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0644))

	out, err := run(t, dir, "play", "--loopback", "--json", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	assert.Contains(t, out, `"status": "failed"`)
}

func TestCLI_ValidateReportsEveryError(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yaml")
	bad := strings.Replace(pingYAML, "accountAlias: alice\n    description: pong", "accountAlias: bob\n    description: pong", 1)
	bad = strings.Replace(bad, "matchType: id", "matchType: telepathy", 1)
	require.NoError(t, os.WriteFile(file, []byte(bad), 0644))

	out, err := run(t, dir, "validate", file)
	require.Error(t, err)
	assert.GreaterOrEqual(t, strings.Count(out, "  - "), 2, out)
}

func TestCLI_Templates(t *testing.T) {
	out, err := run(t, t.TempDir(), "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "NAME")
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "virtuoso version "))
}
