package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// CandidateStore implements storage.CandidateStore using PostgreSQL.
type CandidateStore struct {
	pool *Pool
}

// NewCandidateStore creates a new CandidateStore.
func NewCandidateStore(pool *Pool) *CandidateStore {
	return &CandidateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandidateStore = (*CandidateStore)(nil)

const candidateColumns = `id, created_at, strategy_params, backtest_score, paper_score,
	paper_days_tested, status, promoted_at, reject_reason`

// Insert adds a new candidate. Returns ErrDuplicateKey if id exists.
func (s *CandidateStore) Insert(ctx context.Context, c *domain.StrategyCandidate) (err error) {
	defer observe("candidates_insert")(&err)

	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}
	params, err := json.Marshal(c.StrategyParams)
	if err != nil {
		return fmt.Errorf("encode strategy params: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO strategy_candidates (`+candidateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		c.ID,
		c.CreatedAt,
		params,
		c.BacktestScore,
		c.PaperScore,
		c.PaperDaysTested,
		string(c.Status),
		c.PromotedAt,
		c.RejectReason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

// GetByID retrieves a candidate by its ID. Returns ErrNotFound if not exists.
func (s *CandidateStore) GetByID(ctx context.Context, id string) (c *domain.StrategyCandidate, err error) {
	defer observe("candidates_get")(&err)

	row := s.pool.QueryRow(ctx, `SELECT `+candidateColumns+` FROM strategy_candidates WHERE id = $1`, id)
	c, err = scanCandidate(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get candidate by id: %w", err)
	}
	return c, nil
}

// GetByStatus retrieves candidates with status, ordered by created_at ASC, id ASC.
func (s *CandidateStore) GetByStatus(ctx context.Context, status domain.CandidateStatus) (out []*domain.StrategyCandidate, err error) {
	defer observe("candidates_by_status")(&err)

	rows, err := s.pool.Query(ctx, `
		SELECT `+candidateColumns+`
		FROM strategy_candidates
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("get candidates by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// UpdatePaperResults records the latest paper evaluation of a candidate.
func (s *CandidateStore) UpdatePaperResults(ctx context.Context, id string, paperScore float64, paperDays int) (err error) {
	defer observe("candidates_update_paper")(&err)

	tag, err := s.pool.Exec(ctx, `
		UPDATE strategy_candidates
		SET paper_score = $2, paper_days_tested = $3
		WHERE id = $1
	`, id, paperScore, paperDays)
	if err != nil {
		return fmt.Errorf("update paper results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Transition moves a candidate from status from to status to with a
// conditional update, so only one of several concurrent callers succeeds.
func (s *CandidateStore) Transition(ctx context.Context, id string, from, to domain.CandidateStatus, at time.Time, reason string) (err error) {
	defer observe("candidates_transition")(&err)

	var promotedAt *time.Time
	if to == domain.CandidateStatusPromoted {
		promotedAt = &at
	}
	rejectReason := ""
	if to == domain.CandidateStatusRejected {
		rejectReason = reason
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE strategy_candidates
		SET status = $3,
		    promoted_at = COALESCE($4, promoted_at),
		    reject_reason = CASE WHEN $3 = 'rejected' THEN $5 ELSE reject_reason END
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), promotedAt, rejectReason)
	if err != nil {
		return fmt.Errorf("transition candidate: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing row from a status mismatch
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM strategy_candidates WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check candidate exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrInvalidTransition
}

func scanCandidate(row pgx.Row) (*domain.StrategyCandidate, error) {
	var (
		c      domain.StrategyCandidate
		params []byte
		status string
	)
	err := row.Scan(
		&c.ID,
		&c.CreatedAt,
		&params,
		&c.BacktestScore,
		&c.PaperScore,
		&c.PaperDaysTested,
		&status,
		&c.PromotedAt,
		&c.RejectReason,
	)
	if err != nil {
		return nil, err
	}

	c.Status = domain.CandidateStatus(status)
	c.CreatedAt = c.CreatedAt.UTC()
	if c.PromotedAt != nil {
		t := c.PromotedAt.UTC()
		c.PromotedAt = &t
	}
	if err := json.Unmarshal(params, &c.StrategyParams); err != nil {
		return nil, fmt.Errorf("decode strategy params of %s: %w", c.ID, err)
	}
	return &c, nil
}
