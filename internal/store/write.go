package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/persist"
)

// Save stores doc as a new revision unless the newest revision of doc.ID
// already has the same content hash, in which case that revision is
// returned. Content seen in older revisions is appended again so Load
// always reflects the latest save. The flow row is upserted so the name
// tracks the latest save.
//
// The snapshot is stored as plain JSON; canonical form is only used for
// the hash, so strings round-trip byte for byte.
func (s *Store) Save(ctx context.Context, doc flow.Document) (persist.Revision, error) {
	if doc.ID == "" {
		return persist.Revision{}, errors.New("save flow: empty flow id")
	}
	body, err := json.Marshal(doc.Snapshot)
	if err != nil {
		return persist.Revision{}, fmt.Errorf("save flow: %w", err)
	}
	hash, err := flow.ContentHash(doc.Snapshot)
	if err != nil {
		return persist.Revision{}, fmt.Errorf("save flow: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persist.Revision{}, fmt.Errorf("save flow: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	now := s.now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flows (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`, doc.ID, doc.Name, stamp, stamp)
	if err != nil {
		return persist.Revision{}, fmt.Errorf("save flow: upsert flow: %w", err)
	}

	latest, err := scanRevision(tx.QueryRowContext(ctx, `
		SELECT id, flow_id, seq, content_hash, node_count, edge_count, saved_at
		FROM flow_revisions
		WHERE flow_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, doc.ID))
	seq := int64(1)
	switch {
	case err == nil && latest.ContentHash == hash:
		if err := tx.Commit(); err != nil {
			return persist.Revision{}, fmt.Errorf("save flow: commit: %w", err)
		}
		return latest, nil
	case err == nil:
		seq = latest.Seq + 1
	case !errors.Is(err, sql.ErrNoRows):
		return persist.Revision{}, fmt.Errorf("save flow: lookup latest: %w", err)
	}

	rev := persist.Revision{
		ID:          s.ids.Generate(),
		FlowID:      doc.ID,
		Seq:         seq,
		ContentHash: hash,
		Nodes:       len(doc.Snapshot.Nodes),
		Edges:       len(doc.Snapshot.Edges),
		SavedAt:     now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO flow_revisions
		(id, flow_id, seq, content_hash, snapshot, node_count, edge_count, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rev.ID, rev.FlowID, rev.Seq, rev.ContentHash, string(body), rev.Nodes, rev.Edges, stamp)
	if err != nil {
		return persist.Revision{}, fmt.Errorf("save flow: insert revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return persist.Revision{}, fmt.Errorf("save flow: commit: %w", err)
	}
	return rev, nil
}
