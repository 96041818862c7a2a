package session_test

import (
	"testing"

	"github.com/aretw0/ludus/internal/runtime"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string) runtime.Action {
	t.Helper()
	a, err := runtime.ParseAction(text)
	require.NoError(t, err)
	return a
}
