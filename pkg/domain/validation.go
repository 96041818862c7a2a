package domain

import (
	"fmt"
	"strings"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding from artifact compilation or static validation.
// Issues are collected exhaustively and returned together so the upstream
// generator can fix all of them in one retry.
type Issue struct {
	Severity Severity `json:"severity"`
	// Check names the validator that raised the issue (e.g. "reachability").
	Check string `json:"check"`
	// Subject is the phase, transition or action id concerned.
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Subject != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", i.Severity, i.Check, i.Subject, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Check, i.Message)
}

// ValidationError carries every blocking issue of an artifact set.
type ValidationError struct {
	Key    Key
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "artifacts %s rejected with %d errors:", e.Key, len(e.Issues))
	for _, i := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(i.String())
	}
	return b.String()
}
