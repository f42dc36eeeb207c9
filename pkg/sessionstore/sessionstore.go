// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sessionstore implements an scs session store on top of the
// application's SQLite sessions table.
package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Querier is the subset of database/sql used by the store.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store persists scs sessions in SQLite. A background goroutine removes
// expired rows; set a zero cleanup interval to disable it.
type Store struct {
	db          Querier
	stopCleanup chan struct{}
}

// New returns a session store cleaning up expired sessions every interval.
// interval <= 0 disables cleanup.
func New(db Querier, interval time.Duration) *Store {
	s := &Store{db: db}
	if interval > 0 {
		s.stopCleanup = make(chan struct{})
		go s.cleanupLoop(interval)
	}
	return s
}

// FindCtx returns the data for a session token, reporting found=false for
// missing or expired sessions.
func (s *Store) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	var data []byte
	row := s.db.QueryRowContext(ctx,
		"SELECT data FROM sessions WHERE token = ? AND expiry > ?", token, nowUnix())
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// CommitCtx upserts a session token with its data and expiry.
func (s *Store) CommitCtx(ctx context.Context, token string, data []byte, expiry time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, data, expiry) VALUES (?, ?, ?) ON CONFLICT (token) DO UPDATE SET data = excluded.data, expiry = excluded.expiry",
		token, data, float64(expiry.UnixNano())/1e9)
	return err
}

// DeleteCtx removes a session token.
func (s *Store) DeleteCtx(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// AllCtx returns all unexpired sessions keyed by token.
func (s *Store) AllCtx(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT token, data FROM sessions WHERE expiry > ?", nowUnix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make(map[string][]byte)
	for rows.Next() {
		var token string
		var data []byte
		if err := rows.Scan(&token, &data); err != nil {
			return nil, err
		}
		sessions[token] = data
	}
	return sessions, rows.Err()
}

// Find, Commit, Delete and All satisfy the non-context scs.Store interface.

func (s *Store) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *Store) Commit(token string, data []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, data, expiry)
}

func (s *Store) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

func (s *Store) All() (map[string][]byte, error) {
	return s.AllCtx(context.Background())
}

// StopCleanup terminates the cleanup goroutine. Call it before discarding a
// store whose token table is still in use, or the goroutine keeps the table
// busy forever.
func (s *Store) StopCleanup() {
	if s.stopCleanup != nil {
		close(s.stopCleanup)
		s.stopCleanup = nil
	}
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.db.ExecContext(context.Background(),
				"DELETE FROM sessions WHERE expiry <= ?", nowUnix()); err != nil {
				log.Warn().Err(err).Msg("Session cleanup failed")
			}
		case <-s.stopCleanup:
			return
		}
	}
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
