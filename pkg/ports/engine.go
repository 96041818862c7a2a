package ports

import (
	"context"

	"github.com/aretw0/ludus/pkg/domain"
)

// Message is a rendered player-facing message. To is a runtime player id, or
// empty for a broadcast.
type Message struct {
	To   string `json:"to,omitempty"`
	Text string `json:"text"`
}

// Outcome is the result of one applied submission.
type Outcome struct {
	Snapshot *domain.Snapshot     `json:"snapshot"`
	Diff     *domain.SnapshotDiff `json:"diff,omitempty"`

	// Fault is set for rule violations (session still active) and fatal faults.
	Fault *domain.Fault `json:"fault,omitempty"`

	Messages []Message `json:"messages,omitempty"`

	// Fired lists the transitions taken while settling.
	Fired []string `json:"fired,omitempty"`
}

// SessionService is the session API consumed by front-ends (HTTP, MCP, CLI).
type SessionService interface {
	CreateSession(ctx context.Context, sessionID, gameID, version string) (*domain.Snapshot, error)
	InitializeSession(ctx context.Context, sessionID string, playerIDs []string) (*Outcome, error)
	SubmitAction(ctx context.Context, sessionID, playerID, actionText string) (*Outcome, error)
	GetState(ctx context.Context, sessionID string) (*domain.Snapshot, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]string, error)
}
