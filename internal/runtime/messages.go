package runtime

import (
	"regexp"
	"strings"
	"sync"
	"text/template"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
)

var aliasRE = regexp.MustCompile(`\b` + domain.AliasPrefix + `[0-9]+\b`)

// templateCache holds parsed message templates; artifacts are shared across
// sessions, so each distinct text is parsed once.
type templateCache struct {
	mu    sync.RWMutex
	items map[string]*template.Template
}

func newTemplateCache() *templateCache {
	return &templateCache{items: make(map[string]*template.Template)}
}

func (c *templateCache) get(text string) (*template.Template, error) {
	c.mu.RLock()
	t, ok := c.items[text]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}
	t, err := template.New("message").Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.items[text] = t
	c.mu.Unlock()
	return t, nil
}

// render appends the rendered messages to the outcome. A message that fails
// to render is logged and skipped; it never fails the submission.
func (e *Engine) render(r *run, msgs []domain.MessageTemplate) {
	if len(msgs) == 0 {
		return
	}
	data := e.messageData(r)
	for _, m := range msgs {
		to, ok := e.recipient(r, m.To)
		if !ok {
			e.logger.Warn("Message recipient unknown", "session_id", r.snap.SessionID, "to", m.To)
			continue
		}
		t, err := e.templates.get(m.Template)
		if err != nil {
			e.logger.Warn("Message template invalid", "session_id", r.snap.SessionID, "err", err)
			continue
		}
		var b strings.Builder
		if err := t.Execute(&b, data); err != nil {
			e.logger.Warn("Message render failed", "session_id", r.snap.SessionID, "err", err)
			continue
		}
		r.out.Messages = append(r.out.Messages, ports.Message{To: to, Text: r.outbound(b.String())})
	}
}

func (e *Engine) messageData(r *run) map[string]any {
	data := make(map[string]any)
	for k, v := range r.deltaVars() {
		data[k] = v
	}
	data[domain.RootGame] = r.snap.State.Game
	data[domain.RootPlayers] = r.snap.State.Players
	return data
}

// recipient resolves a message address: "all" (or empty) broadcasts, anything
// else is an alias, a placeholder such as {{playerId}}, or a raw player id.
func (e *Engine) recipient(r *run, to string) (string, bool) {
	to = strings.TrimSpace(to)
	if to == "" || to == domain.MessageToAll {
		return "", true
	}
	if strings.HasPrefix(to, "{{") && strings.HasSuffix(to, "}}") {
		name := strings.TrimSpace(to[2 : len(to)-2])
		if name == domain.VarPlayerID {
			return r.playerID, r.playerID != ""
		}
		to = name
	}
	return r.snap.ResolvePlayer(to)
}

// outbound replaces the player aliases left in rendered text with the
// player ids. Aliases the session did not assign stay as written.
func (r *run) outbound(text string) string {
	if len(r.aliases) == 0 {
		return text
	}
	return aliasRE.ReplaceAllStringFunc(text, func(alias string) string {
		if id, ok := r.aliases[alias]; ok {
			return id
		}
		return alias
	})
}
