package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"dealwatch/internal/model"
	"dealwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

const feedChannelKey = "feed_channel"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AddSearch inserts a search configuration, appending "_" to the ID until it
// is unique, and populates CreatedAt.
func (s *SQLite) AddSearch(ctx context.Context, search *model.SearchConfig) error {
	id := search.ID
	for {
		var count int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM searches WHERE id = ?`, id).Scan(&count)
		if err != nil {
			return fmt.Errorf("check search id: %w", err)
		}
		if count == 0 {
			break
		}
		id += "_"
	}
	search.ID = id

	terms, err := json.Marshal(search.Terms)
	if err != nil {
		return fmt.Errorf("marshal terms: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO searches (id, terms, channel, target_price, context, city_code, city, days_listed, radius, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		search.ID, string(terms), search.Channel, search.TargetPrice, search.Context,
		search.CityCode, search.City, search.DaysListed, search.Radius, now,
	)
	if err != nil {
		return fmt.Errorf("insert search: %w", err)
	}
	search.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetSearch returns a single search configuration by its ID.
func (s *SQLite) GetSearch(ctx context.Context, id string) (*model.SearchConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, terms, channel, target_price, context, city_code, city, days_listed, radius, created_at
		 FROM searches WHERE id = ?`, id,
	)
	return scanSearch(row)
}

// ListSearches returns all stored search configurations.
func (s *SQLite) ListSearches(ctx context.Context) ([]model.SearchConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, terms, channel, target_price, context, city_code, city, days_listed, radius, created_at
		 FROM searches ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query searches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var searches []model.SearchConfig
	for rows.Next() {
		sc, err := scanSearch(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, *sc)
	}
	return searches, rows.Err()
}

// RemoveSearch deletes a search by ID, reporting whether it existed.
func (s *SQLite) RemoveSearch(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete search: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// GetFeedChannel returns the configured feed channel ID, 0 when unset.
func (s *SQLite) GetFeedChannel(ctx context.Context) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, feedChannelKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get feed channel: %w", err)
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse feed channel %q: %w", value, err)
	}
	return id, nil
}

// SetFeedChannel stores the feed channel ID; 0 clears it.
func (s *SQLite) SetFeedChannel(ctx context.Context, channelID int64) error {
	if channelID == 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, feedChannelKey)
		if err != nil {
			return fmt.Errorf("clear feed channel: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		feedChannelKey, strconv.FormatInt(channelID, 10),
	)
	if err != nil {
		return fmt.Errorf("set feed channel: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSearch(row scannable) (*model.SearchConfig, error) {
	var sc model.SearchConfig
	var terms, created string
	err := row.Scan(&sc.ID, &terms, &sc.Channel, &sc.TargetPrice, &sc.Context,
		&sc.CityCode, &sc.City, &sc.DaysListed, &sc.Radius, &created)
	if err != nil {
		return nil, fmt.Errorf("scan search: %w", err)
	}
	if err := json.Unmarshal([]byte(terms), &sc.Terms); err != nil {
		return nil, fmt.Errorf("unmarshal terms: %w", err)
	}
	sc.CreatedAt, _ = time.Parse(timeLayout, created)
	return &sc, nil
}
