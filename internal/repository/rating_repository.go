package repository

import (
	"database/sql"
	"fmt"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/pkg/database"
)

type RatingRepository struct {
	db *database.DB
}

func NewRatingRepository(db *database.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// GetOrCreate identity의 format별 레이팅 레코드 조회 (없으면 기본값
// 으로 생성)
func (r *RatingRepository) GetOrCreate(identityID, format string) (*models.RatingRecord, error) {
	query := `
		INSERT INTO rating_records (identity_id, format, rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity_id, format) DO UPDATE SET identity_id = EXCLUDED.identity_id
		RETURNING identity_id, format, rating, total_sessions, total_wins, current_streak, updated_at
	`

	record := &models.RatingRecord{}
	err := r.db.QueryRow(query, identityID, format, models.DefaultRating).Scan(
		&record.IdentityID,
		&record.Format,
		&record.Rating,
		&record.TotalSessions,
		&record.TotalWins,
		&record.CurrentStreak,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating record: %w", err)
	}

	return record, nil
}

// SettlementUpdate 한 쪽의 정산 반영분
type SettlementUpdate struct {
	IdentityID string
	NewRating  int
	Won        bool
	Draw       bool
}

// ApplySettlement 레이팅 변경과 히스토리 기록을 한 트랜잭션으로
// 적용한다. match_history의 session_id UNIQUE가 멱등성 가드:
// 이미 정산된 세션이면 아무것도 바꾸지 않고 false를 반환한다.
func (r *RatingRepository) ApplySettlement(
	entry *models.MatchHistoryEntry,
	a, b SettlementUpdate,
) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin settlement tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO match_history (
			session_id, format, identity_a, identity_b,
			rating_a_before, rating_a_after, rating_b_before, rating_b_after,
			winner_identity, duration_seconds
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO NOTHING
	`,
		entry.SessionID,
		entry.Format,
		entry.IdentityA,
		entry.IdentityB,
		entry.RatingABefore,
		entry.RatingAAfter,
		entry.RatingBBefore,
		entry.RatingBAfter,
		entry.WinnerIdentity,
		entry.DurationSeconds,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert match history: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		// 이미 정산된 세션이면 멱등 no-op
		return false, nil
	}

	for _, u := range []SettlementUpdate{a, b} {
		if err := applyRatingUpdate(tx, entry.Format, u); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return true, nil
}

func applyRatingUpdate(tx *sql.Tx, format string, u SettlementUpdate) error {
	// 승리: streak 증가, 그 외: streak 리셋
	query := `
		UPDATE rating_records
		SET rating = $1,
		    total_sessions = total_sessions + 1,
		    total_wins = total_wins + CASE WHEN $2 THEN 1 ELSE 0 END,
		    current_streak = CASE WHEN $2 THEN current_streak + 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE identity_id = $3 AND format = $4
	`

	res, err := tx.Exec(query, u.NewRating, u.Won, u.IdentityID, format)
	if err != nil {
		return fmt.Errorf("failed to update rating record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("rating record missing for identity %s format %s", u.IdentityID, format)
	}

	return nil
}

// FindHistoryBySession 세션의 정산 기록 조회 (없으면 nil)
func (r *RatingRepository) FindHistoryBySession(sessionID string) (*models.MatchHistoryEntry, error) {
	query := `
		SELECT id, session_id, format, identity_a, identity_b,
		       rating_a_before, rating_a_after, rating_b_before, rating_b_after,
		       winner_identity, duration_seconds, settled_at
		FROM match_history
		WHERE session_id = $1
	`

	entry := &models.MatchHistoryEntry{}
	err := r.db.QueryRow(query, sessionID).Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.Format,
		&entry.IdentityA,
		&entry.IdentityB,
		&entry.RatingABefore,
		&entry.RatingAAfter,
		&entry.RatingBBefore,
		&entry.RatingBAfter,
		&entry.WinnerIdentity,
		&entry.DurationSeconds,
		&entry.SettledAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match history: %w", err)
	}

	return entry, nil
}

// ListHistoryByIdentity identity의 정산 기록 목록 (최신순)
func (r *RatingRepository) ListHistoryByIdentity(identityID string, limit, offset int) ([]models.MatchHistoryEntry, error) {
	query := `
		SELECT id, session_id, format, identity_a, identity_b,
		       rating_a_before, rating_a_after, rating_b_before, rating_b_after,
		       winner_identity, duration_seconds, settled_at
		FROM match_history
		WHERE identity_a = $1 OR identity_b = $1
		ORDER BY settled_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, identityID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list match history: %w", err)
	}
	defer rows.Close()

	var entries []models.MatchHistoryEntry
	for rows.Next() {
		var e models.MatchHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.Format, &e.IdentityA, &e.IdentityB,
			&e.RatingABefore, &e.RatingAAfter, &e.RatingBBefore, &e.RatingBAfter,
			&e.WinnerIdentity, &e.DurationSeconds, &e.SettledAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match history: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Leaderboard format별 상위 레이팅 목록
func (r *RatingRepository) Leaderboard(format string, limit int) ([]models.LeaderboardRow, error) {
	query := `
		SELECT rr.identity_id, u.username, rr.rating, rr.total_sessions, rr.total_wins, rr.current_streak
		FROM rating_records rr
		JOIN users u ON u.id = rr.identity_id
		WHERE rr.format = $1
		ORDER BY rr.rating DESC, rr.total_wins DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, format, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var board []models.LeaderboardRow
	for rows.Next() {
		var row models.LeaderboardRow
		if err := rows.Scan(
			&row.IdentityID, &row.Username, &row.Rating,
			&row.TotalSessions, &row.TotalWins, &row.CurrentStreak,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		board = append(board, row)
	}

	return board, rows.Err()
}
