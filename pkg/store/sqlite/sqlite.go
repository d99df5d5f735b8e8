package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/store"
)

// Store implements ListingCache and OrderLog using SQLite.
type Store struct {
	db          *sql.DB
	subscribers []chan string
	mu          sync.RWMutex
	now         func() time.Time
}

// Verify interface compliance at compile time.
var _ store.ListingCache = (*Store)(nil)
var _ store.OrderLog = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listing_cache (
		platform TEXT NOT NULL,
		query TEXT NOT NULL,
		listings TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		PRIMARY KEY (platform, query)
	);
	CREATE INDEX IF NOT EXISTS idx_listing_cache_expires ON listing_cache(expires_at);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		status TEXT NOT NULL,
		request TEXT NOT NULL,
		outcome TEXT NOT NULL,
		resumed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// --- ListingCache ---

func (s *Store) GetListings(ctx context.Context, platform domain.PlatformID, query string) ([]domain.Listing, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT listings FROM listing_cache WHERE platform = ? AND query = ? AND expires_at > ?`,
		string(platform), normalizeQuery(query), s.now().UTC(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var listings []domain.Listing
	if err := json.Unmarshal([]byte(raw), &listings); err != nil {
		return nil, false, fmt.Errorf("decoding cached listings: %w", err)
	}
	return listings, true, nil
}

func (s *Store) PutListings(ctx context.Context, platform domain.PlatformID, query string, listings []domain.Listing, ttl time.Duration) error {
	if listings == nil {
		listings = []domain.Listing{}
	}
	data, err := json.Marshal(listings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO listing_cache (platform, query, listings, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(platform, query) DO UPDATE SET listings = excluded.listings, expires_at = excluded.expires_at`,
		string(platform), normalizeQuery(query), string(data), s.now().UTC().Add(ttl),
	)
	return err
}

func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listing_cache WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- OrderLog ---

func (s *Store) RecordOrder(ctx context.Context, rec *store.OrderRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	req, err := json.Marshal(rec.Request)
	if err != nil {
		return err
	}
	out, err := json.Marshal(rec.Outcome)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, platform, status, request, outcome, resumed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Outcome.Platform), string(rec.Outcome.Status), string(req), string(out), rec.Resumed, rec.CreatedAt,
	)
	if err != nil {
		return err
	}
	s.notifySubscribers(rec.ID)
	return nil
}

func (s *Store) RecentOrders(ctx context.Context, limit int) ([]store.OrderRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request, outcome, resumed, created_at FROM orders ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []store.OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func (s *Store) GetOrder(ctx context.Context, id string) (*store.OrderRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, request, outcome, resumed, created_at FROM orders WHERE id = ?`, id)
	rec, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*store.OrderRecord, error) {
	var rec store.OrderRecord
	var req, out string
	if err := row.Scan(&rec.ID, &req, &out, &rec.Resumed, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(req), &rec.Request); err != nil {
		return nil, fmt.Errorf("decoding order request: %w", err)
	}
	if err := json.Unmarshal([]byte(out), &rec.Outcome); err != nil {
		return nil, fmt.Errorf("decoding order outcome: %w", err)
	}
	return &rec, nil
}

func (s *Store) Subscribe() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan string, 100)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Store) Unsubscribe(sub <-chan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ch := range s.subscribers {
		if ch == sub {
			close(ch)
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

func (s *Store) notifySubscribers(id string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- id:
		default:
			// Drop if subscriber is slow.
		}
	}
}
