package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/runger/spoiler/internal/picker"
)

// ErrBlockNotFound is returned when no block has the requested id.
var ErrBlockNotFound = errors.New("block not found")

// Block is a committed picker selection stored under its block id.
type Block struct {
	BlockID           string
	OptionID          int64
	Payload           string
	CreatedAtUnixMs   int64
	CommittedAtUnixMs int64
	CommitCount       int
}

// Selection returns the committed selection stored in the block.
func (b *Block) Selection() picker.Selection {
	return picker.Selection{ID: b.OptionID, Payload: b.Payload}
}

// NewBlockID returns a fresh random block id.
func NewBlockID() string {
	return uuid.NewString()
}

// ValidateBlockID reports whether id is a well-formed block id.
func ValidateBlockID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid block id %q: %w", id, err)
	}
	return nil
}

// Sink returns a CommitSink that stores selections under blockID.
func (s *SQLiteStore) Sink(blockID string) picker.CommitSink {
	return picker.CommitFunc(func(ctx context.Context, sel picker.Selection) error {
		return s.CommitBlock(ctx, blockID, sel)
	})
}

// CommitBlock upserts sel under blockID. Committing again replaces the
// selection and bumps commit_count; created_at is kept.
func (s *SQLiteStore) CommitBlock(ctx context.Context, blockID string, sel picker.Selection) error {
	if err := ValidateBlockID(blockID); err != nil {
		return err
	}

	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks (
			block_id, option_id, payload,
			created_at_unix_ms, committed_at_unix_ms, commit_count
		) VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(block_id) DO UPDATE SET
			option_id = excluded.option_id,
			payload = excluded.payload,
			committed_at_unix_ms = excluded.committed_at_unix_ms,
			commit_count = blocks.commit_count + 1
	`, blockID, sel.ID, sel.Payload, now, now)
	if err != nil {
		return fmt.Errorf("failed to commit block: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"block_id":  blockID,
		"option_id": sel.ID,
	}).Debug("block committed")
	return nil
}

// GetBlock retrieves a block by id.
// Returns ErrBlockNotFound if it doesn't exist.
func (s *SQLiteStore) GetBlock(ctx context.Context, blockID string) (*Block, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT block_id, option_id, payload, created_at_unix_ms,
		       committed_at_unix_ms, commit_count
		FROM blocks
		WHERE block_id = ?
	`, blockID)

	b, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return b, nil
}

// ListBlocks returns blocks, most recently committed first. limit <= 0
// returns all of them.
func (s *SQLiteStore) ListBlocks(ctx context.Context, limit int) ([]Block, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT block_id, option_id, payload, created_at_unix_ms,
		       committed_at_unix_ms, commit_count
		FROM blocks
		ORDER BY committed_at_unix_ms DESC, block_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blocks: %w", err)
	}
	return blocks, nil
}

// DeleteBlock removes a block.
// Returns ErrBlockNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteBlock(ctx context.Context, blockID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE block_id = ?`, blockID)
	if err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrBlockNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(r rowScanner) (*Block, error) {
	var b Block
	if err := r.Scan(
		&b.BlockID,
		&b.OptionID,
		&b.Payload,
		&b.CreatedAtUnixMs,
		&b.CommittedAtUnixMs,
		&b.CommitCount,
	); err != nil {
		return nil, err
	}
	return &b, nil
}
