package runner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/ludus/pkg/domain"
)

// ContentRenderer is a function that transforms markdown before output.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// Markdown renders a frame as a markdown document.
func Markdown(f Frame) string {
	var b strings.Builder
	snap := f.Snapshot

	if f.Fault != nil && f.Fault.Recoverable() {
		fmt.Fprintf(&b, "> **Rejected:** %s\n\n", f.Fault.Message)
		return b.String()
	}

	if snap != nil && snap.State != nil {
		fmt.Fprintf(&b, "## Phase: %s\n\n", snap.State.Phase())
		if msg, ok := snap.State.Game["publicMessage"].(string); ok && msg != "" {
			fmt.Fprintf(&b, "_%s_\n\n", msg)
		}
	}
	for _, m := range f.Messages {
		if m.To == "" {
			fmt.Fprintf(&b, "- %s\n", m.Text)
		} else {
			fmt.Fprintf(&b, "- **@%s:** %s\n", m.To, m.Text)
		}
	}
	if len(f.Messages) > 0 {
		b.WriteString("\n")
	}

	if snap != nil && snap.State != nil {
		writeGameTable(&b, snap.State.Game)
		writePlayerTable(&b, snap)
	}

	switch {
	case f.Fault != nil:
		fmt.Fprintf(&b, "**Game aborted** (%s): %s\n", f.Fault.Kind, f.Fault.Message)
	case snap != nil && snap.Status == domain.StatusEnded:
		if len(snap.WinningPlayers) == 0 {
			b.WriteString("**Game over.** No winner.\n")
		} else {
			fmt.Fprintf(&b, "**Game over.** Winners: %s\n", strings.Join(snap.WinningPlayers, ", "))
		}
	case f.Prompt != nil:
		writePrompt(&b, *f.Prompt)
	}
	return b.String()
}

func writeGameTable(b *strings.Builder, game map[string]any) {
	keys := make([]string, 0, len(game))
	for k := range game {
		if k == "currentPhase" || k == "publicMessage" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)
	b.WriteString("| game | value |\n|---|---|\n")
	for _, k := range keys {
		fmt.Fprintf(b, "| %s | %s |\n", k, cell(game[k]))
	}
	b.WriteString("\n")
}

func writePlayerTable(b *strings.Builder, snap *domain.Snapshot) {
	ids := snap.State.PlayerIDs()
	if len(ids) == 0 {
		return
	}
	fieldSet := make(map[string]bool)
	for _, id := range ids {
		p, _ := snap.State.Player(id)
		for k := range p {
			if k != domain.PlayerPrivateMessage {
				fieldSet[k] = true
			}
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	b.WriteString("| player |")
	for _, f := range fields {
		fmt.Fprintf(b, " %s |", f)
	}
	b.WriteString("\n|---|")
	b.WriteString(strings.Repeat("---|", len(fields)))
	b.WriteString("\n")
	for _, id := range ids {
		p, _ := snap.State.Player(id)
		label := id
		if alias, ok := snap.AliasOf(id); ok {
			label = fmt.Sprintf("%s (%s)", id, alias)
		}
		fmt.Fprintf(b, "| %s |", label)
		for _, f := range fields {
			fmt.Fprintf(b, " %s |", cell(p[f]))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writePrompt(b *strings.Builder, p Prompt) {
	if len(p.Players) == 0 {
		return
	}
	names := make([]string, len(p.Players))
	for i, pl := range p.Players {
		names[i] = pl.PlayerID
	}
	fmt.Fprintf(b, "Waiting for: **%s**\n\n", strings.Join(names, ", "))
	for _, a := range p.Players[0].Actions {
		if a.Description != "" {
			fmt.Fprintf(b, "- `%s`: %s\n", a.Name, a.Description)
		} else {
			fmt.Fprintf(b, "- `%s`\n", a.Name)
		}
	}
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ReplaceAll(t, "|", `\|`)
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return strings.ReplaceAll(string(data), "|", `\|`)
	}
	return fmt.Sprint(v)
}
