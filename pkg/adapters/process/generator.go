package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/ludus/internal/compiler"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/pipeline"
	"gopkg.in/yaml.v3"
)

// DefaultGenerateTimeout bounds one planner or executor run.
const DefaultGenerateTimeout = 2 * time.Minute

// ErrNoOutput is returned when a generator command prints nothing.
var ErrNoOutput = errors.New("generator printed no document")

// CommandConfig describes one external generator program.
type CommandConfig struct {
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	// Timeout bounds one run. Zero means DefaultGenerateTimeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// GeneratorConfig names the programs behind the planning and execution
// stages of the generation pipeline.
type GeneratorConfig struct {
	Planner  CommandConfig `yaml:"planner" json:"planner"`
	Executor CommandConfig `yaml:"executor" json:"executor"`
}

// GenerateInput is written as JSON to the generator's stdin.
type GenerateInput struct {
	Stage    pipeline.Stage   `json:"stage"`
	Request  pipeline.Request `json:"request"`
	Plan     *pipeline.Plan   `json:"plan,omitempty"`
	Feedback []domain.Issue   `json:"feedback,omitempty"`
}

// Generator implements pipeline.Planner and pipeline.Executor with local
// programs. The planner prints a document with stateSchema and graph; the
// executor prints the instructions document. Both may answer in JSON or YAML.
type Generator struct {
	cfg     GeneratorConfig
	baseDir string
	parser  *compiler.Parser
}

var (
	_ pipeline.Planner  = (*Generator)(nil)
	_ pipeline.Executor = (*Generator)(nil)
)

// NewGenerator creates a generator running commands from baseDir.
func NewGenerator(cfg GeneratorConfig, baseDir string) *Generator {
	return &Generator{cfg: cfg, baseDir: baseDir, parser: compiler.NewParser()}
}

// LoadGenerator reads a generator configuration file (YAML or JSON).
func LoadGenerator(path string) (GeneratorConfig, error) {
	var cfg GeneratorConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read generator config: %w", err)
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse generator config: %w", err)
	}
	if cfg.Planner.Command == "" || cfg.Executor.Command == "" {
		return cfg, fmt.Errorf("generator config needs a planner and an executor command")
	}
	return cfg, nil
}

// Plan runs the planner command.
func (g *Generator) Plan(ctx context.Context, req pipeline.Request, feedback []domain.Issue) (*pipeline.Plan, error) {
	out, err := g.invoke(ctx, g.cfg.Planner, GenerateInput{
		Stage:    pipeline.StagePlan,
		Request:  req,
		Feedback: feedback,
	})
	if err != nil {
		return nil, err
	}
	var plan pipeline.Plan
	if err := g.parser.ParseInto([]byte(out), &plan); err != nil {
		return nil, fmt.Errorf("planner output: %w", err)
	}
	return &plan, nil
}

// Execute runs the executor command.
func (g *Generator) Execute(ctx context.Context, req pipeline.Request, plan *pipeline.Plan, feedback []domain.Issue) (domain.Instructions, error) {
	var instr domain.Instructions
	out, err := g.invoke(ctx, g.cfg.Executor, GenerateInput{
		Stage:    pipeline.StageExecute,
		Request:  req,
		Plan:     plan,
		Feedback: feedback,
	})
	if err != nil {
		return instr, err
	}
	if err := g.parser.ParseInto([]byte(out), &instr); err != nil {
		return instr, fmt.Errorf("executor output: %w", err)
	}
	return instr, nil
}

func (g *Generator) invoke(ctx context.Context, cmd CommandConfig, in GenerateInput) (string, error) {
	input, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode generator input: %w", err)
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	env := []string{
		"LUDUS_STAGE=" + string(in.Stage),
		"LUDUS_GAME_ID=" + in.Request.GameID,
		"LUDUS_VERSION=" + in.Request.Version,
	}
	out, err := invocation{
		name:    cmd.Command,
		args:    cmd.Args,
		dir:     g.baseDir,
		env:     append(env, environ(cmd.Environment)...),
		stdin:   input,
		timeout: timeout,
	}.run(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", in.Stage, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%s: %w", in.Stage, ErrNoOutput)
	}
	return out, nil
}
