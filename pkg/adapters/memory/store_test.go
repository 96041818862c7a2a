package memory_test

import (
	"testing"

	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/pkg/adapters/memory"
	"github.com/aretw0/ludus/pkg/ports"
	contract "github.com/aretw0/ludus/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}

func TestMemorySource_Contract(t *testing.T) {
	want := testutils.DuelGame(2)
	contract.ArtifactSourceContractTest(t, memory.NewSource(want), want)
}
