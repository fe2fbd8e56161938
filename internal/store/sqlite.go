package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ticketd-io/ticketd/pkg/protocol"
)

// SQLiteStore implements Store using SQLite. This is the default
// backend for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			scope_id    TEXT NOT NULL,
			channel_ref TEXT NOT NULL UNIQUE,
			owner_ref   TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'open',
			created_at  TEXT NOT NULL,
			closed_at   TEXT
		);

		CREATE TABLE IF NOT EXISTS pending_deletions (
			id          TEXT PRIMARY KEY,
			channel_ref TEXT NOT NULL,
			reason      TEXT NOT NULL DEFAULT '',
			due_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_scope ON tickets(scope_id);
		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_deletions_due ON pending_deletions(due_at);
	`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Insert(scopeID, channelRef, ownerRef string) (*protocol.Ticket, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO tickets (scope_id, channel_ref, owner_ref, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, scopeID, channelRef, ownerRef, string(protocol.TicketOpen), now.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateChannel
		}
		return nil, fmt.Errorf("store: insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: insert id: %w", err)
	}
	return &protocol.Ticket{
		ID:         id,
		ScopeID:    scopeID,
		ChannelRef: channelRef,
		OwnerRef:   ownerRef,
		Status:     protocol.TicketOpen,
		CreatedAt:  now,
	}, nil
}

func (s *SQLiteStore) FindByChannel(channelRef string) (*protocol.Ticket, error) {
	row := s.db.QueryRow(`
		SELECT id, scope_id, channel_ref, owner_ref, status, created_at, closed_at
		FROM tickets WHERE channel_ref = ?
	`, channelRef)

	t, err := scanTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find by channel: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) CountByScope(scopeID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tickets WHERE scope_id = ?`, scopeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count by scope: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) MarkClosed(channelRef string) error {
	var status string
	err := s.db.QueryRow(`SELECT status FROM tickets WHERE channel_ref = ?`, channelRef).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: mark closed: %w", err)
	}
	if protocol.TicketStatus(status) == protocol.TicketClosed {
		return nil
	}

	_, err = s.db.Exec(`UPDATE tickets SET status = ?, closed_at = ? WHERE channel_ref = ?`,
		string(protocol.TicketClosed), time.Now().UTC().Format(time.RFC3339), channelRef)
	if err != nil {
		return fmt.Errorf("store: mark closed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(filter Filter) ([]*protocol.Ticket, error) {
	query := `SELECT id, scope_id, channel_ref, owner_ref, status, created_at, closed_at FROM tickets WHERE 1=1`
	var args []any

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	if filter.ScopeID != "" {
		query += " AND scope_id = ?"
		args = append(args, filter.ScopeID)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var tickets []*protocol.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *SQLiteStore) AddPendingDeletion(d protocol.PendingDeletion) error {
	_, err := s.db.Exec(`
		INSERT INTO pending_deletions (id, channel_ref, reason, due_at) VALUES (?, ?, ?, ?)
	`, d.ID, d.ChannelRef, d.Reason, d.DueAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: add pending deletion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DuePendingDeletions(now time.Time) ([]protocol.PendingDeletion, error) {
	rows, err := s.db.Query(`
		SELECT id, channel_ref, reason, due_at FROM pending_deletions
		WHERE due_at <= ? ORDER BY due_at
	`, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("store: due pending deletions: %w", err)
	}
	defer rows.Close()

	var due []protocol.PendingDeletion
	for rows.Next() {
		var d protocol.PendingDeletion
		var dueAt string
		if err := rows.Scan(&d.ID, &d.ChannelRef, &d.Reason, &dueAt); err != nil {
			return nil, fmt.Errorf("store: scan pending deletion: %w", err)
		}
		d.DueAt, _ = time.Parse(time.RFC3339Nano, dueAt)
		due = append(due, d)
	}
	return due, rows.Err()
}

func (s *SQLiteStore) RemovePendingDeletion(id string) error {
	_, err := s.db.Exec(`DELETE FROM pending_deletions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: remove pending deletion: %w", err)
	}
	return nil
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTicket(row scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var status, createdAt string
	var closedAt *string

	err := row.Scan(&t.ID, &t.ScopeID, &t.ChannelRef, &t.OwnerRef, &status, &createdAt, &closedAt)
	if err != nil {
		return nil, err
	}

	t.Status = protocol.TicketStatus(status)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if closedAt != nil {
		ct, _ := time.Parse(time.RFC3339, *closedAt)
		t.ClosedAt = &ct
	}
	return &t, nil
}
