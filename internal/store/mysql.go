package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ticketd-io/ticketd/pkg/protocol"
)

const mysqlErrDuplicateEntry = 1062

// MySQLStore implements Store using MySQL, for deployments where the
// ticket table is shared with other services.
type MySQLStore struct {
	db *sql.DB
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host string `json:"host"`
	User string `json:"user"`
	Pass string `json:"pass"`
	Name string `json:"name"`
}

// NewMySQLStore connects to MySQL and runs migrations.
func NewMySQLStore(cfg MySQLConfig) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=true",
		cfg.User, cfg.Pass, cfg.Host, cfg.Name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tickets (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			scope_id    VARCHAR(64) NOT NULL,
			channel_ref VARCHAR(128) NOT NULL UNIQUE,
			owner_ref   VARCHAR(128) NOT NULL,
			status      ENUM('open', 'closed') NOT NULL DEFAULT 'open',
			created_at  DATETIME NOT NULL,
			closed_at   DATETIME NULL,
			INDEX idx_tickets_scope (scope_id),
			INDEX idx_tickets_status (status)
		)`,
		`CREATE TABLE IF NOT EXISTS pending_deletions (
			id          VARCHAR(36) PRIMARY KEY,
			channel_ref VARCHAR(128) NOT NULL,
			reason      VARCHAR(512) NOT NULL DEFAULT '',
			due_at      DATETIME(6) NOT NULL,
			INDEX idx_deletions_due (due_at)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate mysql: %w", err)
		}
	}
	return nil
}

func (s *MySQLStore) Insert(scopeID, channelRef, ownerRef string) (*protocol.Ticket, error) {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.Exec(`
		INSERT INTO tickets (scope_id, channel_ref, owner_ref, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, scopeID, channelRef, ownerRef, string(protocol.TicketOpen), now)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
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

func (s *MySQLStore) FindByChannel(channelRef string) (*protocol.Ticket, error) {
	row := s.db.QueryRow(`
		SELECT id, scope_id, channel_ref, owner_ref, status, created_at, closed_at
		FROM tickets WHERE channel_ref = ?
	`, channelRef)

	t, err := scanMySQLTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find by channel: %w", err)
	}
	return t, nil
}

func (s *MySQLStore) CountByScope(scopeID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tickets WHERE scope_id = ?`, scopeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count by scope: %w", err)
	}
	return count, nil
}

func (s *MySQLStore) MarkClosed(channelRef string) error {
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
		string(protocol.TicketClosed), time.Now().UTC().Truncate(time.Second), channelRef)
	if err != nil {
		return fmt.Errorf("store: mark closed: %w", err)
	}
	return nil
}

func (s *MySQLStore) List(filter Filter) ([]*protocol.Ticket, error) {
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
		t, err := scanMySQLTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *MySQLStore) AddPendingDeletion(d protocol.PendingDeletion) error {
	_, err := s.db.Exec(`
		INSERT INTO pending_deletions (id, channel_ref, reason, due_at) VALUES (?, ?, ?, ?)
	`, d.ID, d.ChannelRef, d.Reason, d.DueAt.UTC())
	if err != nil {
		return fmt.Errorf("store: add pending deletion: %w", err)
	}
	return nil
}

func (s *MySQLStore) DuePendingDeletions(now time.Time) ([]protocol.PendingDeletion, error) {
	rows, err := s.db.Query(`
		SELECT id, channel_ref, reason, due_at FROM pending_deletions
		WHERE due_at <= ? ORDER BY due_at
	`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: due pending deletions: %w", err)
	}
	defer rows.Close()

	var due []protocol.PendingDeletion
	for rows.Next() {
		var d protocol.PendingDeletion
		if err := rows.Scan(&d.ID, &d.ChannelRef, &d.Reason, &d.DueAt); err != nil {
			return nil, fmt.Errorf("store: scan pending deletion: %w", err)
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (s *MySQLStore) RemovePendingDeletion(id string) error {
	_, err := s.db.Exec(`DELETE FROM pending_deletions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: remove pending deletion: %w", err)
	}
	return nil
}

// DB returns the underlying database connection.
func (s *MySQLStore) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func scanMySQLTicket(row scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var status string
	var closedAt sql.NullTime

	err := row.Scan(&t.ID, &t.ScopeID, &t.ChannelRef, &t.OwnerRef, &status, &t.CreatedAt, &closedAt)
	if err != nil {
		return nil, err
	}

	t.Status = protocol.TicketStatus(status)
	if closedAt.Valid {
		ct := closedAt.Time
		t.ClosedAt = &ct
	}
	return &t, nil
}
