package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/ludus/internal/compiler"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
)

// ErrArtifactsImmutable is returned when a different document is stored
// under an existing game version.
var ErrArtifactsImmutable = errors.New("artifact version already stored with different content")

// StoreArtifacts stores an accepted set. Versions are immutable: storing the
// same content again is a no-op, different content is rejected.
func (s *Store) StoreArtifacts(ctx context.Context, set *domain.ArtifactSet) error {
	doc, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}
	hash := artifact.Hash(set)

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO artifacts (game_id, version, hash, document, created_at) VALUES (?, ?, ?, ?, ?)`,
		set.GameID, set.Version, hash, doc, toMillis(s.now()))
	if err == nil {
		return nil
	}
	if !isConstraintViolation(err) {
		return fmt.Errorf("store artifacts %s@%s: %w", set.GameID, set.Version, err)
	}

	var existing string
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT hash FROM artifacts WHERE game_id = ? AND version = ?`, set.GameID, set.Version).Scan(&existing); err != nil {
		return fmt.Errorf("read stored artifacts: %w", err)
	}
	if existing != hash {
		return fmt.Errorf("%w: %s@%s", ErrArtifactsImmutable, set.GameID, set.Version)
	}
	return nil
}

// LoadArtifacts reads a stored artifact set.
func (s *Store) LoadArtifacts(ctx context.Context, gameID, version string) (*domain.ArtifactSet, error) {
	var doc []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT document FROM artifacts WHERE game_id = ? AND version = ?`, gameID, version).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s@%s", domain.ErrArtifactsNotFound, gameID, version)
	}
	if err != nil {
		return nil, fmt.Errorf("load artifacts %s@%s: %w", gameID, version, err)
	}
	return compiler.NewParser().Parse(doc)
}

// ListArtifacts returns the key of every stored set.
func (s *Store) ListArtifacts(ctx context.Context) ([]domain.Key, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT game_id, version FROM artifacts ORDER BY game_id, version`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var keys []domain.Key
	for rows.Next() {
		var k domain.Key
		if err := rows.Scan(&k.GameID, &k.Version); err != nil {
			return nil, fmt.Errorf("scan artifact key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Artifacts adapts the store to ports.ArtifactSource and ports.ArtifactSink,
// whose method names clash with the session methods.
func (s *Store) Artifacts() *ArtifactSource {
	return &ArtifactSource{store: s}
}

// ArtifactSource is the artifact view of a Store.
type ArtifactSource struct {
	store *Store
}

func (a *ArtifactSource) Load(ctx context.Context, gameID, version string) (*domain.ArtifactSet, error) {
	return a.store.LoadArtifacts(ctx, gameID, version)
}

func (a *ArtifactSource) List(ctx context.Context) ([]domain.Key, error) {
	return a.store.ListArtifacts(ctx)
}

func (a *ArtifactSource) Store(ctx context.Context, set *domain.ArtifactSet) error {
	return a.store.StoreArtifacts(ctx, set)
}
