package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogModel = `
entities:
  - name: post
    key: [id]
    properties:
      - name: id
        type: int
      - name: title
        type: string
        required: true
    relationships:
      - principal: blog
        navigation: blog
        inverse: auto
        required: true
  - name: blog
    key: [id]
    properties:
      - name: id
        type: int
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the root command with a quiet, colorless config file
func run(t *testing.T, configYAML string, args ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	if configYAML == "" {
		configYAML = "log_level: error\noutput:\n  no_color: true\n"
	}
	configPath := writeFile(t, dir, "modelkit.yaml", configYAML)

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "modelkit", cmd.Use)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"version", "inspect", "validate"} {
		assert.True(t, names[name], "missing subcommand %s", name)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "modelkit version")
	assert.Contains(t, stdout, Version)
}

func TestValidateCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.yaml", blogModel)

	stdout, _, err := run(t, "", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ "+path+" is valid (2 entity types)")
}

func TestValidateCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		model    string
		contains []string
	}{
		{
			name:     "unparsable definition",
			model:    "entities: [",
			contains: []string{"DEFINITION ERROR"},
		},
		{
			name: "invalid definition",
			model: `
entities:
  - name: post
    relationships:
      - principal: blog
`,
			contains: []string{"BUILD FAILED", "unknown principal entity blog"},
		},
		{
			name:     "notification tracking without host types",
			config:   "log_level: error\nmodel:\n  change_tracking: changed\noutput:\n  no_color: true\n",
			model:    blogModel,
			contains: []string{"FINALIZE FAILED"},
		},
		{
			name:     "invalid config",
			config:   "log_level: loud\n",
			model:    blogModel,
			contains: []string{"CONFIGURATION ERROR", "log_level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "model.yaml", tt.model)
			stdout, stderr, err := run(t, tt.config, "validate", path)
			require.Error(t, err)
			assert.Empty(t, stdout)
			for _, s := range tt.contains {
				assert.Contains(t, stderr, s)
			}
		})
	}
}

func TestInspectCommand_Table(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.yaml", blogModel)

	stdout, _, err := run(t, "", "inspect", path)
	require.NoError(t, err)
	for _, s := range []string{
		"Entity types:    2",
		"Change tracking: snapshot",
		"Post\n────\n",
		"BlogId",
		"Posts",
		"Primary key:",
		"Foreign key:",
	} {
		assert.Contains(t, stdout, s)
	}
	assert.NotContains(t, stdout, "Dependency Analysis Report")
}

func TestInspectCommand_Entity(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.yaml", blogModel)

	stdout, _, err := run(t, "", "inspect", path, "--entity", "blog")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Blog\n────\n")
	assert.NotContains(t, stdout, "Post\n────\n")

	stdout, stderr, err := run(t, "", "inspect", path, "--entity", "Pst")
	require.Error(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Cannot find entity type 'Pst'.")
	assert.Contains(t, stderr, "Did you mean: Post?")
}

func TestInspectCommand_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.yaml", blogModel)

	stdout, _, err := run(t, "", "inspect", path, "--format", "json")
	require.NoError(t, err)

	var out modelJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "snapshot", out.ChangeTracking)
	assert.NotEmpty(t, out.ID)
	require.Len(t, out.EntityTypes, 2)
	assert.Equal(t, "Blog", out.EntityTypes[0].Name)

	post := out.EntityTypes[1]
	assert.Equal(t, "Post", post.Name)
	require.NotNil(t, post.Counts)
	assert.Equal(t, 3, post.Counts.PropertyCount)
	require.Len(t, post.Navigations, 1)
	assert.Equal(t, "Blog", post.Navigations[0].Target)

	for _, p := range post.Properties {
		assert.GreaterOrEqual(t, p.Slots.Index, 0, p.Name)
		assert.True(t, p.Shadow, p.Name)
	}
}

func TestInspectCommand_Deps(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.yaml", blogModel)

	stdout, _, err := run(t, "", "inspect", path, "--deps")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Dependency Analysis Report")
	assert.Contains(t, stdout, "1. Blog (no dependencies)")
	assert.Contains(t, stdout, "2. Post (depends on: Blog)")
}

func TestInspectCommand_UnknownFormat(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.yaml", blogModel)

	_, _, err := run(t, "", "inspect", path, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
