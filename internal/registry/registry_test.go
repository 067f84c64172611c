package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := New()
	assert.NoError(t, reg.RegisterActivity("fetch_data"))
	assert.NoError(t, reg.RegisterActivity("transform"))
	assert.NoError(t, reg.RegisterWorkflow("etl", []string{"fetch_data", "transform"}))
	return reg
}

func TestRegisterWorkflow_Duplicate(t *testing.T) {
	reg := newTestRegistry(t)

	err := reg.RegisterWorkflow("etl", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterActivity_Duplicate(t *testing.T) {
	reg := newTestRegistry(t)

	err := reg.RegisterActivity("transform")
	assert.Error(t, err)
}

func TestMissingActivities(t *testing.T) {
	reg := newTestRegistry(t)
	assert.NoError(t, reg.RegisterWorkflow("broken", []string{"transform", "upload", "notify"}))

	wf, ok := reg.Workflow("broken")
	assert.True(t, ok)
	assert.Equal(t, []string{"notify", "upload"}, reg.MissingActivities(wf))

	wf, _ = reg.Workflow("etl")
	assert.Empty(t, reg.MissingActivities(wf))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflows.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_AndValidate(t *testing.T) {
	reg := newTestRegistry(t)

	path := writeConfig(t, `
workflows:
  - name: etl
    task_queue: etl-queue
`)
	cfg, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.NoError(t, Validate(reg, cfg))
}

func TestValidate_UnknownWorkflow(t *testing.T) {
	reg := newTestRegistry(t)

	cfg := &Config{Workflows: []WorkflowConfig{{Name: "ghost", TaskQueue: "q"}}}
	err := Validate(reg, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestValidate_MissingActivity(t *testing.T) {
	reg := newTestRegistry(t)
	assert.NoError(t, reg.RegisterWorkflow("broken", []string{"upload"}))

	cfg := &Config{Workflows: []WorkflowConfig{{Name: "broken", TaskQueue: "q"}}}
	err := Validate(reg, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "upload")
}

func TestValidate_EmptyConfig(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Error(t, Validate(reg, &Config{}))

	cfg := &Config{Workflows: []WorkflowConfig{{Name: "etl"}}} // sin task_queue
	assert.Error(t, Validate(reg, cfg))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	assert.Error(t, err)
}
