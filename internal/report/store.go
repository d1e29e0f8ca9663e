// Package report persists evaluation results and serves them back for
// review and export.
package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rubriq/rubriq/internal/feedback"
)

var ErrNotFound = errors.New("report not found")

// Record is one stored evaluation.
type Record struct {
	ID        string                     `json:"id"`
	Course    string                     `json:"course"`
	UserID    string                     `json:"user_id"`
	Filename  string                     `json:"filename,omitempty"`
	CreatedAt int64                      `json:"created_at"`
	Result    *feedback.EvaluationResult `json:"result"`
}

// Store persists evaluation records.
type Store interface {
	Save(ctx context.Context, course, userID, filename string, res *feedback.EvaluationResult) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
	ListByCourse(ctx context.Context, course string, limit int) ([]Record, error)
}

const defaultListLimit = 50

// SQLStore stores records in the evaluations table. Placeholders are written
// in $n form; the sqlite driver accepts them as well.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Save(ctx context.Context, course, userID, filename string, res *feedback.EvaluationResult) (Record, error) {
	buf, err := json.Marshal(res)
	if err != nil {
		return Record{}, fmt.Errorf("encode result: %w", err)
	}
	rec := Record{
		ID:        uuid.NewString(),
		Course:    course,
		UserID:    userID,
		Filename:  filename,
		CreatedAt: time.Now().Unix(),
		Result:    res,
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO evaluations (id,course,user_id,filename,total_score,result_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.Course, rec.UserID, rec.Filename, res.TotalScore, string(buf), rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,course,user_id,filename,result_json,created_at FROM evaluations WHERE id=$1`, id)
	return scanRecord(row)
}

func (s *SQLStore) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	return s.list(ctx, `SELECT id,course,user_id,filename,result_json,created_at FROM evaluations
		WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
}

func (s *SQLStore) ListByCourse(ctx context.Context, course string, limit int) ([]Record, error) {
	return s.list(ctx, `SELECT id,course,user_id,filename,result_json,created_at FROM evaluations
		WHERE course=$1 ORDER BY created_at DESC LIMIT $2`, course, limit)
}

func (s *SQLStore) list(ctx context.Context, query, key string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, query, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var resultJSON string
	if err := row.Scan(&rec.ID, &rec.Course, &rec.UserID, &rec.Filename, &resultJSON, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.Result = &feedback.EvaluationResult{}
	if err := json.Unmarshal([]byte(resultJSON), rec.Result); err != nil {
		return Record{}, fmt.Errorf("decode result for %s: %w", rec.ID, err)
	}
	return rec, nil
}

// MemStore is the in-memory Store used by tests and demo mode.
type MemStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

func NewMemStore() *MemStore {
	return &MemStore{recs: map[string]Record{}}
}

func (m *MemStore) Save(_ context.Context, course, userID, filename string, res *feedback.EvaluationResult) (Record, error) {
	rec := Record{
		ID:        uuid.NewString(),
		Course:    course,
		UserID:    userID,
		Filename:  filename,
		CreatedAt: time.Now().Unix(),
		Result:    res,
	}
	m.mu.Lock()
	m.recs[rec.ID] = rec
	m.mu.Unlock()
	return rec, nil
}

func (m *MemStore) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemStore) ListByUser(_ context.Context, userID string, limit int) ([]Record, error) {
	return m.filter(limit, func(r Record) bool { return r.UserID == userID })
}

func (m *MemStore) ListByCourse(_ context.Context, course string, limit int) ([]Record, error) {
	return m.filter(limit, func(r Record) bool { return r.Course == course })
}

func (m *MemStore) filter(limit int, keep func(Record) bool) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
