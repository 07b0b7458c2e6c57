package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const notifyChannel = "mm_documents"

// PostgresStore keeps documents in a single JSONB table. Collection change
// subscriptions ride on Postgres LISTEN/NOTIFY: a row trigger notifies with
// the collection name and subscribers re-read the full snapshot.
type PostgresStore struct {
	db     *sqlx.DB
	dsn    string
	logger *zap.SugaredLogger
}

func NewPostgresStore(db *sqlx.DB, dsn string, logger *zap.SugaredLogger) *PostgresStore {
	return &PostgresStore{db: db, dsn: dsn, logger: logger}
}

// EnsureSchema creates the documents table and its change trigger (idempotent).
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT NOT NULL,
  id varchar(64) NOT NULL,
  data JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (collection, id)
);
CREATE OR REPLACE FUNCTION notify_document_change() RETURNS trigger AS $fn$
BEGIN
  PERFORM pg_notify('` + notifyChannel + `', COALESCE(NEW.collection, OLD.collection));
  RETURN NULL;
END;
$fn$ LANGUAGE plpgsql;
DROP TRIGGER IF EXISTS documents_notify ON documents;
CREATE TRIGGER documents_notify AFTER INSERT OR UPDATE OR DELETE ON documents
  FOR EACH ROW EXECUTE FUNCTION notify_document_change();
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	const q = `SELECT data FROM documents WHERE collection=$1 AND id=$2`
	var raw []byte
	if err := s.db.GetContext(ctx, &raw, q, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	q := `INSERT INTO documents (collection,id,data) VALUES ($1,$2,$3)
	  ON CONFLICT (collection,id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
	if merge {
		q = `INSERT INTO documents (collection,id,data) VALUES ($1,$2,$3)
	  ON CONFLICT (collection,id) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = NOW()`
	}
	_, err = s.db.ExecContext(ctx, q, collection, id, raw)
	return err
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Document, error) {
	const q = `SELECT id, data FROM documents WHERE collection=$1 ORDER BY id`
	rows, err := s.db.QueryxContext(ctx, q, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data := make(map[string]any)
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
		}
		out = append(out, Document{ID: id, Data: data})
	}
	return out, rows.Err()
}

// Subscribe opens a LISTEN connection for the collection. The initial
// snapshot is delivered from the subscription's own goroutine; afterwards
// every notification for the collection triggers a fresh snapshot.
func (s *PostgresStore) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (*Subscription, error) {
	listener := pq.NewListener(s.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warnw("docstore listener event", "collection", collection, "event", ev, "err", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	stop := make(chan struct{})
	go s.run(ctx, listener, collection, fn, stop)

	return newSubscription(func() {
		close(stop)
		if err := listener.Close(); err != nil {
			s.logger.Warnw("close docstore listener", "collection", collection, "err", err)
		}
	}), nil
}

func (s *PostgresStore) run(ctx context.Context, listener *pq.Listener, collection string, fn SnapshotFunc, stop <-chan struct{}) {
	s.deliver(ctx, collection, fn)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			// nil notification signals a reconnect; re-read to converge
			if n == nil || n.Extra == collection {
				s.deliver(ctx, collection, fn)
			}
		case <-time.After(90 * time.Second):
			if err := listener.Ping(); err != nil {
				s.logger.Warnw("docstore listener ping", "collection", collection, "err", err)
			}
		}
	}
}

func (s *PostgresStore) deliver(ctx context.Context, collection string, fn SnapshotFunc) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		s.logger.Warnw("docstore snapshot", "collection", collection, "err", err)
		return
	}
	fn(docs)
}
