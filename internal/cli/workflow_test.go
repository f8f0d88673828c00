package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
groups:
  - {id: g1, external_id: chat-42, name: Platform Team, channel: "#ops"}
members:
  - {group: g1, id: u1, name: Ann, role: admin}
  - {group: g1, id: u2, name: Ben, role: member}
  - {group: g1, id: u3, name: Cam, role: member}
  - {group: g1, id: u4, name: Dee, role: member}
  - {group: g1, id: u5, name: Eli, role: member}
  - {group: g1, id: u6, name: Fay, role: member}
items:
  - {id: t1, group: g1, title: one, status: open}
  - {id: t2, group: g1, title: two, status: done}
`

// run executes the CLI with the given args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seededDB creates a database seeded with the standard test fixture and
// returns its path.
func seededDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "purgegate.db")
	seedFile := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(seedYAML), 0o644))

	out, err := run(t, "seed", "--db", db, "--file", seedFile)
	require.NoError(t, err)
	require.Contains(t, out, "seeded 1 group(s), 6 member(s), 2 item(s)")
	return db
}

func TestInit_CreatesDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "new.db")

	out, err := run(t, "init", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "database ready")

	_, statErr := os.Stat(db)
	require.NoError(t, statErr)
}

func TestSeed_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	seedFile := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte("grups: []\n"), 0o644))

	_, err := run(t, "seed", "--db", filepath.Join(dir, "x.db"), "--file", seedFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestItems_ListsAndFilters(t *testing.T) {
	db := seededDB(t)

	out, err := run(t, "items", "--db", db, "--group", "chat-42")
	require.NoError(t, err)
	assert.Contains(t, out, "t1")
	assert.Contains(t, out, "t2")

	out, err = run(t, "items", "--db", db, "--group", "chat-42", "--filter", "incomplete")
	require.NoError(t, err)
	assert.Contains(t, out, "t1")
	assert.NotContains(t, out, "t2")
}

func TestItems_UnknownGroup(t *testing.T) {
	db := seededDB(t)

	_, err := run(t, "items", "--db", db, "--group", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWorkflow_RequestApproveExecute(t *testing.T) {
	db := seededDB(t)

	// Six members, threshold 2.
	out, err := run(t, "request", "--db", db, "--group", "chat-42", "--requester", "u1", "--items", "t1,t2")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 6 approvals required")

	out, err = run(t, "pending", "--db", db, "--group", "chat-42")
	require.NoError(t, err)
	assert.Contains(t, out, "by Ann")
	assert.Contains(t, out, "approvals: 0 of 2")

	out, err = run(t, "approve", "--db", db, "--group", "chat-42", "--voter", "u2")
	require.NoError(t, err)
	assert.Contains(t, out, "pending: approval recorded (1/2)")

	out, err = run(t, "approve", "--db", db, "--group", "chat-42", "--voter", "u3")
	require.NoError(t, err)
	assert.Contains(t, out, "executed: quorum reached, deleted 2 item(s)")

	out, err = run(t, "pending", "--db", db, "--group", "chat-42")
	require.NoError(t, err)
	assert.Contains(t, out, "no pending deletion request")

	out, err = run(t, "items", "--db", db, "--group", "chat-42")
	require.NoError(t, err)
	assert.Contains(t, out, "no items")
}

func TestRequest_RejectionExitsNonZero(t *testing.T) {
	db := seededDB(t)

	// Non-admin requester.
	_, err := run(t, "request", "--db", db, "--group", "chat-42", "--requester", "u2", "--items", "t1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// Missing item.
	_, err = run(t, "request", "--db", db, "--group", "chat-42", "--requester", "u1", "--items", "t9")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestApprove_NonMemberExitsNonZero(t *testing.T) {
	db := seededDB(t)

	_, err := run(t, "request", "--db", db, "--group", "chat-42", "--requester", "u1", "--items", "t1")
	require.NoError(t, err)

	_, err = run(t, "approve", "--db", db, "--group", "chat-42", "--voter", "stranger")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestApprove_JSONOutput(t *testing.T) {
	db := seededDB(t)

	_, err := run(t, "request", "--db", db, "--group", "chat-42", "--requester", "u1", "--items", "t1")
	require.NoError(t, err)

	out, err := run(t, "--format", "json", "approve", "--db", db, "--group", "chat-42", "--voter", "u2")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, float64(1), data["approved"])
	assert.Equal(t, float64(2), data["required"])
}
