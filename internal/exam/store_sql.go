package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// PutQuestionSet commits a paper in a single transaction. The UNIQUE
// (year, slot) index makes concurrent ingestion race-safe: exactly one
// writer commits, the rest observe ErrConflict, and no partial set is
// ever visible to readers.
func (s *SQLStore) PutQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error) {
	qj, err := json.Marshal(qs.Questions)
	if err != nil {
		return QuestionSet{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QuestionSet{}, storeFailure(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO question_sets (id, year, slot, question_count, questions_json, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		qs.ID, qs.Year, qs.Slot, len(qs.Questions), string(qj), qs.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return QuestionSet{}, fmt.Errorf("question set %d %q: %w", qs.Year, qs.Slot, ErrConflict)
		}
		return QuestionSet{}, storeFailure(err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return QuestionSet{}, fmt.Errorf("question set %d %q: %w", qs.Year, qs.Slot, ErrConflict)
		}
		return QuestionSet{}, storeFailure(err)
	}
	return qs, nil
}

func (s *SQLStore) GetQuestionSet(ctx context.Context, key SetKey) (QuestionSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, year, slot, questions_json, created_at FROM question_sets WHERE year=$1 AND slot=$2`,
		key.Year, key.Slot)
	return scanQuestionSet(row, fmt.Sprintf("%d %q", key.Year, key.Slot))
}

func (s *SQLStore) GetQuestionSetByID(ctx context.Context, id string) (QuestionSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, year, slot, questions_json, created_at FROM question_sets WHERE id=$1`, id)
	return scanQuestionSet(row, id)
}

func scanQuestionSet(row *sql.Row, ref string) (QuestionSet, error) {
	var qs QuestionSet
	var qjson string
	if err := row.Scan(&qs.ID, &qs.Year, &qs.Slot, &qjson, &qs.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return QuestionSet{}, fmt.Errorf("question set %s: %w", ref, ErrNotFound)
		}
		return QuestionSet{}, storeFailure(err)
	}
	if err := json.Unmarshal([]byte(qjson), &qs.Questions); err != nil {
		return QuestionSet{}, err
	}
	return qs, nil
}

func (s *SQLStore) ListQuestionSets(ctx context.Context, opts ListOpts) ([]QuestionSetSummary, error) {
	q := `SELECT id, year, slot, question_count, created_at FROM question_sets`
	var conds []string
	var args []any
	if opts.Year != 0 {
		args = append(args, opts.Year)
		conds = append(conds, fmt.Sprintf("year=$%d", len(args)))
	}
	if opts.Slot != "" {
		args = append(args, opts.Slot)
		conds = append(conds, fmt.Sprintf("slot=$%d", len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY year DESC, slot ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeFailure(err)
	}
	defer rows.Close()
	out := []QuestionSetSummary{}
	for rows.Next() {
		var sum QuestionSetSummary
		if err := rows.Scan(&sum.ID, &sum.Year, &sum.Slot, &sum.QuestionCount, &sum.CreatedAt); err != nil {
			return nil, storeFailure(err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	rj, err := json.Marshal(a.Responses)
	if err != nil {
		return err
	}
	bj, err := json.Marshal(a.SubjectBoundaries)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, question_set_id, user_id, status, responses_json, boundaries_json, version, started_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.QuestionSetID, a.UserID, a.Status, string(rj), string(bj), a.Version, a.StartedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("attempt %s: %w", a.ID, ErrConflict)
		}
		return storeFailure(err)
	}
	return nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question_set_id, user_id, status, responses_json, boundaries_json, score, version, started_at, completed_at
		 FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) FindOpenAttempt(ctx context.Context, userID, questionSetID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question_set_id, user_id, status, responses_json, boundaries_json, score, version, started_at, completed_at
		 FROM attempts WHERE user_id=$1 AND question_set_id=$2 AND status=$3`,
		userID, questionSetID, StatusOpen)
	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, fmt.Errorf("open attempt for %s: %w", userID, ErrNotFound)
		}
		return Attempt{}, err
	}
	return a, nil
}

// UpdateAttempt is the single-writer guard: the row must still be open
// and at the version the caller read. A zero-row update is diagnosed by
// re-reading, so a submit that lost the race reports ErrInvalidState
// rather than silently re-scoring.
func (s *SQLStore) UpdateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	rj, err := json.Marshal(a.Responses)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET status=$1, responses_json=$2, score=$3, completed_at=$4, version=version+1
		 WHERE id=$5 AND version=$6 AND status=$7`,
		a.Status, string(rj), nullableInt(a.Score), nullableInt64(a.CompletedAt), a.ID, a.Version, StatusOpen)
	if err != nil {
		return Attempt{}, storeFailure(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Attempt{}, storeFailure(err)
	}
	if n == 0 {
		cur, err := s.GetAttempt(ctx, a.ID)
		if err != nil {
			return Attempt{}, err
		}
		if cur.Status != StatusOpen {
			return Attempt{}, fmt.Errorf("attempt %s already scored: %w", a.ID, ErrInvalidState)
		}
		return Attempt{}, fmt.Errorf("attempt %s version %d stale: %w", a.ID, a.Version, ErrConflict)
	}
	a.Version++
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT id, question_set_id, user_id, status, responses_json, boundaries_json, score, version, started_at, completed_at FROM attempts`
	var conds []string
	var args []any
	if opts.QuestionSetID != "" {
		args = append(args, opts.QuestionSetID)
		conds = append(conds, fmt.Sprintf("question_set_id=$%d", len(args)))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeFailure(err)
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var rjson, bjson string
	var score sql.NullInt64
	var completed sql.NullInt64
	if err := row.Scan(&a.ID, &a.QuestionSetID, &a.UserID, &a.Status, &rjson, &bjson,
		&score, &a.Version, &a.StartedAt, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, err
		}
		return Attempt{}, storeFailure(err)
	}
	if err := json.Unmarshal([]byte(rjson), &a.Responses); err != nil {
		a.Responses = []Response{}
	}
	if err := json.Unmarshal([]byte(bjson), &a.SubjectBoundaries); err != nil {
		a.SubjectBoundaries = nil
	}
	if score.Valid {
		v := int(score.Int64)
		a.Score = &v
	}
	if completed.Valid {
		v := completed.Int64
		a.CompletedAt = &v
	}
	return a, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "sqlstate 23505") || // pgx
		strings.Contains(msg, "duplicate key value violates unique constraint") // postgres
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
