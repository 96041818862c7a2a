package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/ludus/pkg/runner"
)

// DefaultTimeout bounds a bot decision when its config sets none.
const DefaultTimeout = 10 * time.Second

// ErrNoAction is returned when a bot exits without printing an action.
var ErrNoAction = errors.New("bot printed no action")

// Request is written as JSON to the bot's stdin.
type Request struct {
	PlayerID string       `json:"playerId"`
	Frame    runner.Frame `json:"frame"`
}

// reply is the optional JSON form of a bot's answer.
type reply struct {
	Action string `json:"action"`
}

// Runner plays for registered players by running local processes. Only
// players in the allow-list are driven; everything else stays human.
type Runner struct {
	registry map[string]BotConfig
	baseDir  string
}

var _ runner.Bot = (*Runner)(nil)

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(bots map[string]BotConfig) RunnerOption {
	return func(r *Runner) {
		for _, bot := range bots {
			r.registry[bot.Player] = bot
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new process bot runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]BotConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command playing for player.
func (r *Runner) Register(player, command string, args ...string) {
	r.registry[player] = BotConfig{Player: player, Command: command, Args: args}
}

// Plays reports whether a command is registered for playerID.
func (r *Runner) Plays(playerID string) bool {
	_, ok := r.registry[playerID]
	return ok
}

// Act runs the player's command. The request goes to stdin as JSON and the
// game facts the bot most likely needs are also exported as LUDUS_*
// variables. The answer is the first non-empty stdout line, either plain
// action text or {"action": "..."}.
func (r *Runner) Act(ctx context.Context, playerID string, frame runner.Frame) (string, error) {
	bot, ok := r.registry[playerID]
	if !ok {
		return "", fmt.Errorf("no bot registered for player %s", playerID)
	}
	timeout := bot.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	input, err := json.Marshal(Request{PlayerID: playerID, Frame: frame})
	if err != nil {
		return "", fmt.Errorf("failed to encode bot request: %w", err)
	}

	// Values travel as environment variables, never as flags.
	env := []string{"LUDUS_PLAYER_ID=" + playerID}
	if frame.Prompt != nil {
		env = append(env, "LUDUS_PHASE="+frame.Prompt.Phase)
		for _, p := range frame.Prompt.Players {
			if p.PlayerID != playerID {
				continue
			}
			names := make([]string, len(p.Actions))
			for i, a := range p.Actions {
				names[i] = a.Name
			}
			env = append(env, "LUDUS_ACTIONS="+strings.Join(names, ","))
		}
	}

	out, err := invocation{
		name:    bot.Command,
		args:    bot.Args,
		dir:     r.baseDir,
		env:     append(env, environ(bot.Environment)...),
		stdin:   input,
		timeout: timeout,
	}.run(ctx)
	if err != nil {
		return "", fmt.Errorf("bot %s: %w", playerID, err)
	}
	return parseReply(out)
}

func parseReply(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			var rep reply
			if err := json.Unmarshal([]byte(line), &rep); err == nil && rep.Action != "" {
				return rep.Action, nil
			}
		}
		return line, nil
	}
	return "", ErrNoAction
}
