package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
)

// JSONHandler implements IOHandler over JSON Lines, for driving sessions
// from another program (an agent harness, a test bot).
//
// Every frame is written as one object {"type":"frame",...}; system messages
// as {"type":"system","message":...}. Each input line is either a
// {"playerId":...,"action":...} object or a bare action string for the
// default player.
type JSONHandler struct {
	Reader *bufio.Reader
	Writer io.Writer

	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		enc:    json.NewEncoder(w),
	}
}

type jsonFrame struct {
	Type string `json:"type"`
	Frame
}

type jsonSystem struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type jsonPrompt struct {
	Type string `json:"type"`
	Prompt
}

func (h *JSONHandler) encode(v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(v)
}

// Output emits the frame as one JSON line.
func (h *JSONHandler) Output(ctx context.Context, frame Frame) error {
	return h.encode(jsonFrame{Type: "frame", Frame: frame})
}

// Input emits the prompt and reads one line.
func (h *JSONHandler) Input(ctx context.Context, prompt Prompt) (Submission, error) {
	if err := h.encode(jsonPrompt{Type: "prompt", Prompt: prompt}); err != nil {
		return Submission{}, err
	}
	for {
		text, err := h.Reader.ReadString('\n')
		text = strings.TrimSpace(text)
		if text == "" {
			if err != nil {
				return Submission{}, err
			}
			continue
		}
		clean, sErr := SanitizeInput(text)
		if sErr != nil {
			_ = h.SystemOutput(ctx, sErr.Error())
			if err != nil {
				return Submission{}, err
			}
			continue
		}
		return decodeSubmission(clean, prompt), nil
	}
}

func decodeSubmission(text string, prompt Prompt) Submission {
	if strings.HasPrefix(text, "{") {
		var sub Submission
		if err := json.Unmarshal([]byte(text), &sub); err == nil && sub.Action != "" {
			if sub.PlayerID == "" {
				sub.PlayerID = prompt.Default()
			}
			return sub
		}
		// Not a submission envelope: the object is the action itself.
		return Submission{PlayerID: prompt.Default(), Action: text}
	}
	var s string
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		text = s
	}
	return ParseSubmission(text, prompt)
}

// SystemOutput emits a system line.
func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.encode(jsonSystem{Type: "system", Message: msg})
}
