package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validScenarioYAML = `
name: minimal
description: minimal valid scenario
group:
  id: g1
  external_id: chat-1
members:
  - {id: u1, name: Ann, role: admin}
steps:
  - pending: true
`

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenarioFile(t, validScenarioYAML)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", scenario.Name)
	assert.Len(t, scenario.Members, 1)
	assert.Len(t, scenario.Steps, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := writeScenarioFile(t, `
name: typo
description: has a typo field
group:
  id: g1
  external_id: chat-1
members:
  - {id: u1, name: Ann, role: admin}
stepz:
  - pending: true
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenario_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: `
description: d
group: {id: g1, external_id: chat-1}
members: [{id: u1, name: Ann, role: admin}]
steps: [{pending: true}]
`,
		},
		{
			name: "missing members",
			yaml: `
name: s
description: d
group: {id: g1, external_id: chat-1}
steps: [{pending: true}]
`,
		},
		{
			name: "bad role",
			yaml: `
name: s
description: d
group: {id: g1, external_id: chat-1}
members: [{id: u1, name: Ann, role: owner}]
steps: [{pending: true}]
`,
		},
		{
			name: "empty step",
			yaml: `
name: s
description: d
group: {id: g1, external_id: chat-1}
members: [{id: u1, name: Ann, role: admin}]
steps: [{}]
`,
		},
		{
			name: "two step kinds at once",
			yaml: `
name: s
description: d
group: {id: g1, external_id: chat-1}
members: [{id: u1, name: Ann, role: admin}]
steps: [{pending: true, advance: 1h}]
`,
		},
		{
			name: "initiate without items",
			yaml: `
name: s
description: d
group: {id: g1, external_id: chat-1}
members: [{id: u1, name: Ann, role: admin}]
steps: [{initiate: {requester: u1}}]
`,
		},
		{
			name: "unknown filter",
			yaml: `
name: s
description: d
group: {id: g1, external_id: chat-1}
members: [{id: u1, name: Ann, role: admin}]
steps: [{initiate: {requester: u1, items: [t1], filter: everything}}]
`,
		},
		{
			name: "bad ttl",
			yaml: `
name: s
description: d
group: {id: g1, external_id: chat-1}
members: [{id: u1, name: Ann, role: admin}]
ttl: soon
steps: [{pending: true}]
`,
		},
		{
			name: "bad advance duration",
			yaml: `
name: s
description: d
group: {id: g1, external_id: chat-1}
members: [{id: u1, name: Ann, role: admin}]
steps: [{advance: tomorrow}]
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScenarioFile(t, tc.yaml)
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}
