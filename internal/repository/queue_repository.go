package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/pkg/database"
)

type QueueRepository struct {
	db *database.DB
}

func NewQueueRepository(db *database.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

const queueColumns = `id, participant_id, format, mode, opponent_preference,
	pause_mode, skill_rating, joined_at, last_heartbeat_at, status, matched_session_id`

// Enqueue 대기열 등록. 같은 participant의 기존 waiting 항목을 먼저
// 지우고 새로 삽입한다 (delete-then-insert). 동시 중복 삽입은 partial
// unique index가 거부한다.
func (r *QueueRepository) Enqueue(
	participantID, format string,
	mode models.SessionMode,
	preference models.OpponentPreference,
	pause models.PauseMode,
	rating int,
) (*models.QueueEntry, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin enqueue tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM queue_entries WHERE participant_id = $1 AND status = 'waiting'`,
		participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to clear prior waiting entry: %w", err)
	}

	query := `
		INSERT INTO queue_entries (participant_id, format, mode, opponent_preference, pause_mode, skill_rating)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + queueColumns

	entry := &models.QueueEntry{}
	err = scanQueueEntry(tx.QueryRow(query, participantID, format, mode, preference, pause, rating), entry)
	if err != nil {
		return nil, fmt.Errorf("failed to insert queue entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit enqueue: %w", err)
	}

	return entry, nil
}

// Heartbeat 생존 신고. waiting 상태에서만 갱신된다.
func (r *QueueRepository) Heartbeat(entryID string) (bool, error) {
	res, err := r.db.Exec(
		`UPDATE queue_entries SET last_heartbeat_at = NOW() WHERE id = $1 AND status = 'waiting'`,
		entryID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to heartbeat: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// Cancel waiting 상태에서만 취소 가능 (이미 matched면 되돌릴 수 없음)
func (r *QueueRepository) Cancel(entryID string) (bool, error) {
	res, err := r.db.Exec(
		`UPDATE queue_entries SET status = 'cancelled' WHERE id = $1 AND status = 'waiting'`,
		entryID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel queue entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// FindByID ID로 항목 조회
func (r *QueueRepository) FindByID(entryID string) (*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = $1`

	entry := &models.QueueEntry{}
	err := scanQueueEntry(r.db.QueryRow(query, entryID), entry)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find queue entry: %w", err)
	}

	return entry, nil
}

// FindOpponent 레이팅이 가장 가까운 상대 찾기. 동률이면 오래 기다린
// 항목 우선. heartbeat가 liveness window를 넘긴 유령 항목은 제외한다.
func (r *QueueRepository) FindOpponent(
	entryID, format string,
	mode models.SessionMode,
	rating, ratingRange int,
	livenessWindow time.Duration,
) (*models.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM queue_entries
		WHERE format = $1
		  AND mode = $2
		  AND id != $3
		  AND status = 'waiting'
		  AND opponent_preference != 'ai_only'
		  AND skill_rating BETWEEN $4 AND $5
		  AND last_heartbeat_at > NOW() - $6::interval
		ORDER BY
			ABS(skill_rating - $7) ASC,
			joined_at ASC
		LIMIT 1
	`

	entry := &models.QueueEntry{}
	err := scanQueueEntry(r.db.QueryRow(query,
		format,
		mode,
		entryID,
		rating-ratingRange,
		rating+ratingRange,
		intervalArg(livenessWindow),
		rating,
	), entry)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find opponent: %w", err)
	}

	return entry, nil
}

// MarkMatched waiting → matched 조건부 전이 (entry별 CAS). 이미 다른
// 매칭이 선점했으면 false를 반환하고 아무것도 바꾸지 않는다.
func (r *QueueRepository) MarkMatched(entryID, sessionID string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE queue_entries
		SET status = 'matched', matched_session_id = $1
		WHERE id = $2 AND status = 'waiting'
	`, sessionID, entryID)
	if err != nil {
		return false, fmt.Errorf("failed to mark matched: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// RevertToWaiting 반쪽만 선점된 매칭을 되돌린다 (상대 CAS 실패 시)
func (r *QueueRepository) RevertToWaiting(entryID string) error {
	_, err := r.db.Exec(`
		UPDATE queue_entries
		SET status = 'waiting', matched_session_id = NULL
		WHERE id = $1 AND status = 'matched'
	`, entryID)
	if err != nil {
		return fmt.Errorf("failed to revert queue entry: %w", err)
	}
	return nil
}

// ExpireStale heartbeat가 끊긴 waiting 항목을 expired로 표시.
// 이미 reserved된 매칭에는 소급 적용되지 않는다.
func (r *QueueRepository) ExpireStale(livenessWindow time.Duration) ([]string, error) {
	rows, err := r.db.Query(`
		UPDATE queue_entries
		SET status = 'expired'
		WHERE status = 'waiting' AND last_heartbeat_at < NOW() - $1::interval
		RETURNING id
	`, intervalArg(livenessWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale entries: %w", err)
	}
	defer rows.Close()

	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired id: %w", err)
		}
		expired = append(expired, id)
	}

	return expired, rows.Err()
}

// ListWaiting 주기적 스캔용 waiting 목록 (liveness 통과분만)
func (r *QueueRepository) ListWaiting(format string, mode models.SessionMode, livenessWindow time.Duration) ([]models.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM queue_entries
		WHERE format = $1
		  AND mode = $2
		  AND status = 'waiting'
		  AND last_heartbeat_at > NOW() - $3::interval
		ORDER BY joined_at ASC
	`

	rows, err := r.db.Query(query, format, mode, intervalArg(livenessWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var entry models.QueueEntry
		if err := scanQueueEntry(rows, &entry); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func intervalArg(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int(d.Seconds()))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueEntry(row rowScanner, entry *models.QueueEntry) error {
	return row.Scan(
		&entry.ID,
		&entry.ParticipantID,
		&entry.Format,
		&entry.Mode,
		&entry.OpponentPreference,
		&entry.PauseMode,
		&entry.SkillRating,
		&entry.JoinedAt,
		&entry.LastHeartbeatAt,
		&entry.Status,
		&entry.MatchedSessionID,
	)
}

