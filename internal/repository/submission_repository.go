package repository

import (
	"fmt"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/pkg/database"
)

type SubmissionRepository struct {
	db *database.DB
}

func NewSubmissionRepository(db *database.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Upsert 결과 제출 저장. (session, submitter)당 1건이며 재제출은
// 덮어쓴다 (불일치 해소용 resubmission 경로).
func (r *SubmissionRepository) Upsert(sessionID, submitterID string, result models.Result) (*models.ResultSubmission, error) {
	query := `
		INSERT INTO result_submissions (session_id, submitter_identity_id, result)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, submitter_identity_id)
		DO UPDATE SET result = EXCLUDED.result, submitted_at = NOW()
		RETURNING session_id, submitter_identity_id, result, submitted_at
	`

	sub := &models.ResultSubmission{}
	err := r.db.QueryRow(query, sessionID, submitterID, result).Scan(
		&sub.SessionID,
		&sub.SubmitterIdentityID,
		&sub.Result,
		&sub.SubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert result submission: %w", err)
	}

	return sub, nil
}

// ListBySession 세션의 제출 목록 (최대 2건)
func (r *SubmissionRepository) ListBySession(sessionID string) ([]models.ResultSubmission, error) {
	query := `
		SELECT session_id, submitter_identity_id, result, submitted_at
		FROM result_submissions
		WHERE session_id = $1
		ORDER BY submitted_at ASC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list result submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.ResultSubmission
	for rows.Next() {
		var s models.ResultSubmission
		if err := rows.Scan(&s.SessionID, &s.SubmitterIdentityID, &s.Result, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result submission: %w", err)
		}
		subs = append(subs, s)
	}

	return subs, rows.Err()
}
