package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tuimessenger/internal/chat"
)

// sqliteStore keeps the chat backlog replayed to new connections.
type sqliteStore struct {
	db         *sql.DB
	maxHistory int
}

func openSQLiteStore(path string, maxHistory int) (*sqliteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &sqliteStore{db: db, maxHistory: maxHistory}
	if store.maxHistory <= 0 {
		store.maxHistory = defaultHistory
	}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) initSchema() error {
	schema := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) setMetaIfMissing(key string, value string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO meta(key, value) VALUES(?, ?)`, key, value)
	return err
}

func (s *sqliteStore) getMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// relayID returns the id stored in the database, recording fallback on
// first use.
func (s *sqliteStore) relayID(fallback string) (string, error) {
	if err := s.setMetaIfMissing("relay_id", fallback); err != nil {
		return "", err
	}
	return s.getMeta("relay_id")
}

// appendMessage records a chat message and trims the table to maxHistory rows.
func (s *sqliteStore) appendMessage(msg chat.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO messages(sender, content, created_at) VALUES(?, ?, ?)`,
		msg.Sender, msg.Content, time.Now().Unix()); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE seq NOT IN (
		SELECT seq FROM messages ORDER BY seq DESC LIMIT ?
	)`, s.maxHistory); err != nil {
		return err
	}
	return tx.Commit()
}

// recent returns up to limit chat messages, oldest first.
func (s *sqliteStore) recent(limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT sender, content FROM (
		SELECT seq, sender, content FROM messages ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		msg := chat.Message{Kind: chat.KindChat}
		if err := rows.Scan(&msg.Sender, &msg.Content); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
