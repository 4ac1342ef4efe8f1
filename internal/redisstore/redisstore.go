// Package redisstore keeps flow revisions in Redis.
//
// Key layout, all under a configurable prefix:
//
//	<prefix>flow:<id>:name           string, latest flow name
//	<prefix>flow:<id>:revisions      list of revision JSON, oldest first
//	<prefix>flow:<id>:rev:<revID>    string, snapshot JSON
//
// A save WATCHes the revisions list and writes the name, the snapshot and
// the list entry in one MULTI/EXEC, so a failed save leaves no trace.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/persist"
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "flowbuilder:"

// maxSaveAttempts bounds retries when a concurrent save touches the same
// flow between WATCH and EXEC.
const maxSaveAttempts = 5

// Store implements persist.Backend on Redis.
type Store struct {
	client *redis.Client
	prefix string
	ids    flow.IDGenerator
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets how revision ids are minted. Default: UUIDv7.
func WithIDGenerator(g flow.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithClock sets the time source for SavedAt. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open parses redisURL, connects and pings.
func Open(ctx context.Context, redisURL, prefix string, opts ...Option) (*Store, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is required")
	}
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(client, prefix, opts...), nil
}

// New wraps an existing client. An empty prefix selects DefaultPrefix.
func New(client *redis.Client, prefix string, opts ...Option) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &Store{
		client: client,
		prefix: prefix,
		ids:    flow.UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(flowID, suffix string) string {
	return s.prefix + "flow:" + flowID + ":" + suffix
}

// Save appends doc as a new revision, or returns the newest revision when
// it already has the same content hash.
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

	revisions := s.key(doc.ID, "revisions")
	var rev persist.Revision
	save := func(tx *redis.Tx) error {
		latest, ok, err := s.latest(ctx, tx, doc.ID)
		if err != nil {
			return err
		}
		if ok && latest.ContentHash == hash {
			rev = latest
			_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, s.key(doc.ID, "name"), doc.Name, 0)
				return nil
			})
			return err
		}

		rev = persist.Revision{
			ID:          s.ids.Generate(),
			FlowID:      doc.ID,
			Seq:         latest.Seq + 1,
			ContentHash: hash,
			Nodes:       len(doc.Snapshot.Nodes),
			Edges:       len(doc.Snapshot.Edges),
			SavedAt:     s.now().UTC(),
		}
		revJSON, err := json.Marshal(rev)
		if err != nil {
			return fmt.Errorf("marshal revision: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, s.key(doc.ID, "name"), doc.Name, 0)
			p.Set(ctx, s.key(doc.ID, "rev:"+rev.ID), body, 0)
			p.RPush(ctx, revisions, revJSON)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		err := s.client.Watch(ctx, save, revisions)
		if err == nil {
			return rev, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return persist.Revision{}, fmt.Errorf("save flow: %w", err)
		}
	}
	return persist.Revision{}, fmt.Errorf("save flow %s: %w after %d attempts", doc.ID, redis.TxFailedErr, maxSaveAttempts)
}

// Load returns the newest revision of a flow.
func (s *Store) Load(ctx context.Context, flowID string) (flow.Document, error) {
	rev, ok, err := s.latest(ctx, s.client, flowID)
	if err != nil {
		return flow.Document{}, fmt.Errorf("load flow: %w", err)
	}
	if !ok {
		return flow.Document{}, fmt.Errorf("%w: %s", persist.ErrNotFound, flowID)
	}

	body, err := s.client.Get(ctx, s.key(flowID, "rev:"+rev.ID)).Result()
	if err != nil {
		return flow.Document{}, fmt.Errorf("load flow: snapshot %s: %w", rev.ID, err)
	}
	var snap flow.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return flow.Document{}, fmt.Errorf("load flow: unmarshal snapshot: %w", err)
	}
	normalize(&snap)

	name, err := s.client.Get(ctx, s.key(flowID, "name")).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return flow.Document{}, fmt.Errorf("load flow: name: %w", err)
	}
	return flow.Document{ID: flowID, Name: name, Snapshot: snap}, nil
}

// latest reads the last entry of a flow's revision list. The zero Revision
// and false mean the flow has none.
func (s *Store) latest(ctx context.Context, c redis.Cmdable, flowID string) (persist.Revision, bool, error) {
	raw, err := c.LIndex(ctx, s.key(flowID, "revisions"), -1).Result()
	if errors.Is(err, redis.Nil) {
		return persist.Revision{}, false, nil
	}
	if err != nil {
		return persist.Revision{}, false, fmt.Errorf("latest revision: %w", err)
	}
	var rev persist.Revision
	if err := json.Unmarshal([]byte(raw), &rev); err != nil {
		return persist.Revision{}, false, fmt.Errorf("latest revision: unmarshal: %w", err)
	}
	return rev, true, nil
}

// History returns a flow's revisions oldest first.
func (s *Store) History(ctx context.Context, flowID string) ([]persist.Revision, error) {
	raws, err := s.client.LRange(ctx, s.key(flowID, "revisions"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	revisions := make([]persist.Revision, 0, len(raws))
	for _, raw := range raws {
		var rev persist.Revision
		if err := json.Unmarshal([]byte(raw), &rev); err != nil {
			return nil, fmt.Errorf("history: unmarshal revision: %w", err)
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

func normalize(snap *flow.Snapshot) {
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
}
