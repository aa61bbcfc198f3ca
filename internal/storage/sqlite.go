package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultPollInterval is how often SQLite checks for writes from other connections
const DefaultPollInterval = 250 * time.Millisecond

// SQLite keeps values in a kv table. Writes from other processes are detected by polling
// PRAGMA data_version on a dedicated connection.
type SQLite struct {
	db     *sql.DB
	dbPath string
	subs   *subscribers
	logger *zap.Logger

	mu       sync.Mutex
	lastSeen map[string]string
	closed   bool

	pollConn *sql.Conn
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// OpenSQLite creates or opens the database at dbPath
func OpenSQLite(ctx context.Context, dbPath string, interval time.Duration, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLite{
		db:       db,
		dbPath:   dbPath,
		subs:     newSubscribers(),
		logger:   logger.Named("storage.sqlite"),
		lastSeen: make(map[string]string),
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.pollConn, err = db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reserve poll connection: %w", err)
	}

	version, err := s.dataVersion(ctx)
	if err != nil {
		s.pollConn.Close()
		db.Close()
		return nil, err
	}

	go s.poll(version)
	return s, nil
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.dbPath
}

func (s *SQLite) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	return err
}

func (s *SQLite) read(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}

	value, ok, err := s.read(ctx, s.db, key)
	if err != nil {
		return "", false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	s.lastSeen[key] = value
	return value, ok, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	s.lastSeen[key] = value
	return nil
}

func (s *SQLite) Subscribe(key string) (<-chan Change, func()) {
	return s.subs.add(key)
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
	s.subs.closeAll()
	s.pollConn.Close()
	return s.db.Close()
}

// dataVersion changes whenever another connection commits to the database
func (s *SQLite) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.pollConn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read data_version: %w", err)
	}
	return v, nil
}

func (s *SQLite) poll(version int64) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval*4)
			current, err := s.dataVersion(ctx)
			if err != nil {
				s.logger.Warn("poll failed", zap.Error(err))
			} else if current != version {
				version = current
				s.refresh(ctx)
			}
			cancel()
		}
	}
}

// refresh rereads subscribed keys and reports those that differ from what this handle last saw.
// Reads go through the poll connection so they see the same snapshot data_version reported.
func (s *SQLite) refresh(ctx context.Context) {
	for _, key := range s.subs.keys() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		value, _, err := s.read(ctx, s.pollConn, key)
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn("reread key", zap.String("key", key), zap.Error(err))
			continue
		}
		old := s.lastSeen[key]
		if value == old {
			s.mu.Unlock()
			continue
		}
		s.lastSeen[key] = value
		s.mu.Unlock()

		s.subs.publish(Change{Key: key, OldValue: old, NewValue: value})
	}
}
