package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/ludus/pkg/value"
)

// ErrEmptyAction is returned for blank submissions.
var ErrEmptyAction = errors.New("empty action")

// Action is one parsed player submission.
type Action struct {
	Name   string
	Params map[string]any
}

// ParseAction reads a submission in one of two forms:
//
//	{"action": "submit-choice", "choice": 2}
//	submit-choice choice: 2 note=hello
//
// In the text form the first word is the action name and the rest are
// key/value pairs written "key: value" or "key=value". Text values that look
// like numbers or booleans are converted.
func ParseAction(text string) (Action, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Action{}, ErrEmptyAction
	}
	if strings.HasPrefix(text, "{") {
		return parseJSONAction(text)
	}

	tokens := strings.Fields(text)
	a := Action{Name: tokens[0], Params: make(map[string]any)}

	var key string
	for _, tok := range tokens[1:] {
		switch {
		case key != "":
			a.Params[key] = coerce(tok)
			key = ""
		case strings.HasSuffix(tok, ":"):
			key = strings.TrimSuffix(tok, ":")
		case strings.Contains(tok, "="):
			k, v, _ := strings.Cut(tok, "=")
			a.Params[k] = coerce(v)
		case strings.Contains(tok, ":"):
			k, v, _ := strings.Cut(tok, ":")
			a.Params[k] = coerce(v)
		default:
			return Action{}, fmt.Errorf("unexpected token %q in action %q", tok, a.Name)
		}
	}
	if key != "" {
		return Action{}, fmt.Errorf("missing value for %q in action %q", key, a.Name)
	}
	return a, nil
}

func parseJSONAction(text string) (Action, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Action{}, fmt.Errorf("invalid action payload: %w", err)
	}
	name, _ := raw["action"].(string)
	if name == "" {
		return Action{}, fmt.Errorf("action payload has no \"action\" name")
	}
	delete(raw, "action")
	params, _ := value.Normalize(raw).(map[string]any)
	return Action{Name: name, Params: params}, nil
}

func coerce(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	return s
}

// String renders the action in text form.
func (a Action) String() string {
	var b strings.Builder
	b.WriteString(a.Name)
	for _, k := range sortedKeys(a.Params) {
		fmt.Fprintf(&b, " %s=%v", k, a.Params[k])
	}
	return b.String()
}
