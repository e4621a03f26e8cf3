// Package postgres implements the durable survey store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/surveybot/core/config"
	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/survey"
	"log/slog"
)

// Store persists survey records in the survey_responses table. The strategy
// decides whether a user may accumulate many records (multi) or exactly one
// (single).
type Store struct {
	db       *sqlx.DB
	strategy string
}

// New builds a Store for the given strategy (config.StrategyMulti or
// config.StrategySingle).
func New(db *sqlx.DB, strategy string) *Store {
	return &Store{db: db, strategy: strategy}
}

const recordColumns = "id, user_key, status, answer1, answer2, created_at, updated_at"

func (s *Store) activeQuery(forUpdate bool) string {
	var q string
	if s.strategy == coreconfig.StrategySingle {
		q = "SELECT " + recordColumns + " FROM survey_responses WHERE user_key = $1 ORDER BY id LIMIT 1"
	} else {
		q = "SELECT " + recordColumns + " FROM survey_responses WHERE user_key = $1 AND status <> 'completed' ORDER BY created_at DESC, id DESC LIMIT 1"
	}
	if forUpdate {
		q += " FOR UPDATE"
	}
	return q
}

// FindActive implements survey.Store.
func (s *Store) FindActive(ctx context.Context, userKey string) (*survey.Record, error) {
	var rec survey.Record
	err := s.db.GetContext(ctx, &rec, s.activeQuery(false), userKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active: %w", err)
	}
	return &rec, nil
}

// Create implements survey.Store. The insert commits before returning; in the
// single strategy an existing row is returned untouched under a row lock.
func (s *Store) Create(ctx context.Context, userKey string) (*survey.Record, error) {
	const insert = `
		INSERT INTO survey_responses (user_key, status, created_at, updated_at)
		VALUES ($1, 'started', now(), now())
		RETURNING ` + recordColumns

	var rec survey.Record

	if s.strategy == coreconfig.StrategySingle {
		err := s.inTx(ctx, func(tx *sqlx.Tx) error {
			err := tx.GetContext(ctx, &rec, s.activeQuery(true), userKey)
			if err == nil {
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return tx.GetContext(ctx, &rec, insert, userKey)
		})
		if err != nil {
			return nil, fmt.Errorf("create: %w", err)
		}
		return &rec, nil
	}

	if err := s.db.GetContext(ctx, &rec, insert, userKey); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return &rec, nil
}

// SaveAnswer implements survey.Store. The lookup and the update run in one
// transaction with the row locked, so concurrent turns for the same user key
// serialize: the second transaction blocks, then sees the moved status and
// gets ErrStatusChanged instead of applying the transition twice.
func (s *Store) SaveAnswer(ctx context.Context, userKey, answer string, expected survey.Status) (*survey.Record, error) {
	var (
		rec   survey.Record
		found bool
		raced bool
	)

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &rec, s.activeQuery(true), userKey)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		if rec.Status != expected {
			raced = true
			return nil
		}

		next, slot, ok := survey.Transition(expected)
		if !ok {
			return nil
		}

		column := "answer1"
		if slot == 2 {
			column = "answer2"
		}
		update := fmt.Sprintf(
			"UPDATE survey_responses SET %s = $1, status = $2, updated_at = now() WHERE id = $3 RETURNING %s",
			column, recordColumns,
		)
		return tx.GetContext(ctx, &rec, update, answer, next, rec.ID)
	})
	if err != nil {
		logger.DB.Error("save answer failed",
			slog.String("event", "db.save_answer"),
			slog.String("user_key", userKey),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("save answer: %w", err)
	}

	if !found {
		return nil, nil
	}
	if raced {
		return &rec, survey.ErrStatusChanged
	}
	return &rec, nil
}

// ExportAll implements survey.Store.
func (s *Store) ExportAll(ctx context.Context) ([]survey.Record, error) {
	var out []survey.Record
	if err := s.db.SelectContext(ctx, &out, "SELECT "+recordColumns+" FROM survey_responses ORDER BY id"); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
