package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/storage/models"
	"github.com/reef-research/backend/pkg/logger"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConditionalUpdateFailed is returned when a guarded UPDATE matched no
// rows, e.g. a credit decrement against a balance that moved underneath.
var ErrConditionalUpdateFailed = errors.New("conditional update matched no rows")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		whitelisted INTEGER NOT NULL DEFAULT 0,
		credits_remaining INTEGER NOT NULL DEFAULT 0 CHECK (credits_remaining >= 0),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS papers (
		arxiv_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		abstract TEXT NOT NULL,
		authors TEXT NOT NULL,
		publish_date TEXT,
		doi TEXT,
		journal_ref TEXT,
		ingested_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_papers_ingested ON papers(ingested_at);

	CREATE TABLE IF NOT EXISTS generation_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		cost INTEGER NOT NULL,
		input_summary TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_user ON generation_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_history_created ON generation_history(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := `SELECT id, whitelisted, credits_remaining, created_at, updated_at FROM profiles WHERE id = ?`

	var p models.UserProfile
	var whitelisted int
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, userID).Scan(
		&p.ID,
		&whitelisted,
		&p.CreditsRemaining,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p.Whitelisted = whitelisted != 0
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	return &p, nil
}

func (c *Client) UpsertProfile(ctx context.Context, p *models.UserProfile) error {
	query := `
		INSERT INTO profiles (id, whitelisted, credits_remaining, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			whitelisted = excluded.whitelisted,
			credits_remaining = excluded.credits_remaining,
			updated_at = excluded.updated_at
	`

	whitelisted := 0
	if p.Whitelisted {
		whitelisted = 1
	}

	now := time.Now()
	_, err := c.db.ExecContext(ctx, query, p.ID, whitelisted, p.CreditsRemaining, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// DeductCredits decrements the balance only while it still covers the
// amount. A balance that moved underneath the caller yields
// ErrConditionalUpdateFailed rather than a negative balance.
func (c *Client) DeductCredits(ctx context.Context, userID string, amount int) error {
	query := `
		UPDATE profiles
		SET credits_remaining = credits_remaining - ?, updated_at = ?
		WHERE id = ? AND credits_remaining >= ?
	`

	res, err := c.db.ExecContext(ctx, query, amount, time.Now().Unix(), userID, amount)
	if err != nil {
		return fmt.Errorf("failed to deduct credits: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConditionalUpdateFailed
	}

	logger.Debug("Credits deducted",
		zap.String("user_id", userID),
		zap.Int("amount", amount),
	)

	return nil
}

func (c *Client) UpsertPaper(ctx context.Context, paper *models.Paper) error {
	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}

	query := `
		INSERT INTO papers (arxiv_id, title, abstract, authors, publish_date, doi, journal_ref, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(arxiv_id) DO UPDATE SET
			title = excluded.title,
			abstract = excluded.abstract,
			authors = excluded.authors,
			publish_date = excluded.publish_date,
			doi = excluded.doi,
			journal_ref = excluded.journal_ref,
			ingested_at = excluded.ingested_at
	`

	_, err = c.db.ExecContext(ctx, query,
		paper.ArxivID,
		paper.Title,
		paper.Abstract,
		string(authorsJSON),
		paper.PublishDate,
		paper.DOI,
		paper.JournalRef,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert paper: %w", err)
	}

	return nil
}

func (c *Client) GetPaper(ctx context.Context, arxivID string) (*models.Paper, error) {
	query := `SELECT arxiv_id, title, abstract, authors, publish_date, doi, journal_ref FROM papers WHERE arxiv_id = ?`

	var p models.Paper
	var authorsJSON string
	var doi, journalRef sql.NullString

	err := c.db.QueryRowContext(ctx, query, arxivID).Scan(
		&p.ArxivID,
		&p.Title,
		&p.Abstract,
		&authorsJSON,
		&p.PublishDate,
		&doi,
		&journalRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	if err := json.Unmarshal([]byte(authorsJSON), &p.Authors); err != nil {
		logger.Warn("Malformed authors column",
			zap.String("arxiv_id", p.ArxivID),
			zap.Error(err),
		)
	}
	p.DOI = doi.String
	p.JournalRef = journalRef.String

	return &p, nil
}

func (c *Client) InsertGenerationRecord(ctx context.Context, record *models.GenerationRecord) error {
	query := `
		INSERT INTO generation_history (id, user_id, operation, cost, input_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Operation,
		record.Cost,
		record.InputSummary,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation record: %w", err)
	}

	logger.Info("Generation recorded",
		zap.String("id", record.ID),
		zap.String("user_id", record.UserID),
		zap.String("operation", record.Operation),
		zap.Int("cost", record.Cost),
	)

	return nil
}

func (c *Client) GetGenerationHistory(ctx context.Context, userID string, limit int) ([]models.GenerationRecord, error) {
	query := `
		SELECT id, user_id, operation, cost, input_summary, created_at
		FROM generation_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation history: %w", err)
	}
	defer rows.Close()

	var records []models.GenerationRecord
	for rows.Next() {
		var r models.GenerationRecord
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.UserID, &r.Operation, &r.Cost, &r.InputSummary, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}
