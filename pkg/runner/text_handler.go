package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// TextHandler implements the hot-seat terminal interface. Players share one
// input; a line starting with "@<player>" addresses that player, any other
// line goes to the first player the game is waiting for.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// The pump reads in its own goroutine so Input can return on ctx
// cancellation (Ctrl+C) while a read is pending.
func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

// Output renders the frame as markdown.
func (h *TextHandler) Output(ctx context.Context, frame Frame) error {
	output := Markdown(frame)
	if h.Renderer != nil {
		if rendered, err := h.Renderer(output); err == nil {
			output = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(output))
	return err
}

// Input prompts with the default player and reads one line.
func (h *TextHandler) Input(ctx context.Context, prompt Prompt) (Submission, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return Submission{}, ctx.Err()
		default:
			fmt.Fprintf(h.Writer, "[%s] > ", prompt.Default())
		}

		select {
		case <-ctx.Done():
			return Submission{}, ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return Submission{}, io.EOF
			}
			if res.err != nil {
				return Submission{}, res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			if clean == "" {
				continue
			}
			return ParseSubmission(clean, prompt), nil
		}
	}
}

// SystemOutput prints a prefixed meta-message.
func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return err
}

// ParseSubmission splits an "@player action..." line. Lines without a
// player go to the prompt's default player.
func ParseSubmission(line string, prompt Prompt) Submission {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "@") {
		player, rest, _ := strings.Cut(line[1:], " ")
		return Submission{PlayerID: player, Action: strings.TrimSpace(rest)}
	}
	return Submission{PlayerID: prompt.Default(), Action: line}
}
