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

// Load returns the newest revision of a flow.
// Returns persist.ErrNotFound if the flow has never been saved.
func (s *Store) Load(ctx context.Context, flowID string) (flow.Document, error) {
	var name, body string
	err := s.db.QueryRowContext(ctx, `
		SELECT f.name, r.snapshot
		FROM flows f
		JOIN flow_revisions r ON r.flow_id = f.id
		WHERE f.id = ?
		ORDER BY r.seq DESC
		LIMIT 1
	`, flowID).Scan(&name, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return flow.Document{}, fmt.Errorf("%w: %s", persist.ErrNotFound, flowID)
	}
	if err != nil {
		return flow.Document{}, fmt.Errorf("load flow: %w", err)
	}

	snap, err := unmarshalSnapshot(body)
	if err != nil {
		return flow.Document{}, fmt.Errorf("load flow %s: %w", flowID, err)
	}
	return flow.Document{ID: flowID, Name: name, Snapshot: snap}, nil
}

// History returns a flow's revisions ordered by seq ascending.
//
// Returns an empty slice (not nil) if the flow has no revisions.
func (s *Store) History(ctx context.Context, flowID string) ([]persist.Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, flow_id, seq, content_hash, node_count, edge_count, saved_at
		FROM flow_revisions
		WHERE flow_id = ?
		ORDER BY seq ASC
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revisions := []persist.Revision{}
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revisions, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (persist.Revision, error) {
	var rev persist.Revision
	var savedAt string
	if err := row.Scan(&rev.ID, &rev.FlowID, &rev.Seq, &rev.ContentHash, &rev.Nodes, &rev.Edges, &savedAt); err != nil {
		return persist.Revision{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return persist.Revision{}, fmt.Errorf("parse saved_at %q: %w", savedAt, err)
	}
	rev.SavedAt = t
	return rev, nil
}

// unmarshalSnapshot parses the snapshot TEXT column. Missing
// collections come back as empty slices.
func unmarshalSnapshot(body string) (flow.Snapshot, error) {
	var snap flow.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return flow.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Nodes == nil {
		snap.Nodes = []flow.Node{}
	}
	if snap.Edges == nil {
		snap.Edges = []flow.Edge{}
	}
	for i := range snap.Nodes {
		if snap.Nodes[i].Data == nil {
			snap.Nodes[i].Data = flow.Data{}
		}
	}
	return snap, nil
}
