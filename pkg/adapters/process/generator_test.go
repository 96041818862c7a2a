package process

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// splitDuel writes the duel sample as a plan document and an instructions
// document into dir.
func splitDuel(t *testing.T, dir string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "examples", "games", "duel.yaml"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))

	write := func(name string, v any) {
		out, err := yaml.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), out, 0o644))
	}
	write("plan.yaml", map[string]any{"stateSchema": doc["stateSchema"], "graph": doc["graph"]})
	write("instructions.yaml", doc["instructions"])
}

func TestGenerator_DrivesPipeline(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	splitDuel(t, dir)

	gen := NewGenerator(GeneratorConfig{
		Planner: CommandConfig{Command: "sh", Args: []string{"-c", "cat > plan-input.json; cat plan.yaml"}},
		Executor: CommandConfig{
			Command: "sh",
			Args:    []string{"-c", `test "$LUDUS_STAGE" = execute && test "$LUDUS_GAME_ID" = duel && cat instructions.yaml`},
		},
	}, dir)

	req := pipeline.Request{GameID: "duel", Version: "gen", Brief: "rock paper scissors"}
	res, err := pipeline.New(gen, gen).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageDone, res.Stage)
	assert.Equal(t, "gen", res.Set.Version)
	assert.Contains(t, res.Set.Instructions.PlayerPhases, "choice")

	raw, err := os.ReadFile(filepath.Join(dir, "plan-input.json"))
	require.NoError(t, err)
	var in GenerateInput
	require.NoError(t, json.Unmarshal(raw, &in))
	assert.Equal(t, pipeline.StagePlan, in.Stage)
	assert.Equal(t, req, in.Request)
	assert.Nil(t, in.Plan)
	assert.Empty(t, in.Feedback)
}

func TestGenerator_FeedbackReachesCommand(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()

	gen := NewGenerator(GeneratorConfig{
		Executor: CommandConfig{Command: "sh", Args: []string{"-c", `grep -q '"check":"structure"' && echo 'playerPhases: {}'`}},
	}, dir)

	feedback := []domain.Issue{{Severity: domain.SeverityError, Check: "structure", Subject: "choice", Message: "no actions"}}
	instr, err := gen.Execute(context.Background(), pipeline.Request{GameID: "g", Version: "1"}, &pipeline.Plan{}, feedback)
	require.NoError(t, err)
	assert.Empty(t, instr.PlayerPhases)
}

func TestGenerator_Failures(t *testing.T) {
	skipWithoutShell(t)

	gen := NewGenerator(GeneratorConfig{
		Planner:  CommandConfig{Command: "sh", Args: []string{"-c", "true"}},
		Executor: CommandConfig{Command: "sh", Args: []string{"-c", "echo '[unclosed'"}},
	}, t.TempDir())
	req := pipeline.Request{GameID: "g", Version: "1"}

	_, err := gen.Plan(context.Background(), req, nil)
	assert.ErrorIs(t, err, ErrNoOutput)

	_, err = gen.Execute(context.Background(), req, &pipeline.Plan{}, nil)
	assert.ErrorContains(t, err, "executor output")
}

func TestLoadGenerator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "generator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
planner:
  command: ./plan.sh
  timeout: 30s
  env:
    MODEL: small
executor:
  command: ./execute.sh
`), 0o644))

	cfg, err := LoadGenerator(path)
	require.NoError(t, err)
	assert.Equal(t, "./plan.sh", cfg.Planner.Command)
	assert.Equal(t, "small", cfg.Planner.Environment["MODEL"])
	assert.Equal(t, "./execute.sh", cfg.Executor.Command)

	jsonPath := filepath.Join(dir, "generator.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"planner":{"command":"x"}}`), 0o644))
	_, err = LoadGenerator(jsonPath)
	assert.ErrorContains(t, err, "planner and an executor")
}
