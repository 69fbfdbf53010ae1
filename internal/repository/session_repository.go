package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/pkg/database"
)

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, format, mode, status, is_ai_opponent, current_phase,
	phase_started_at, pause_mode, topic, started_at, ended_at, end_reason, created_at`

// Create reserved 상태의 세션 생성
func (r *SessionRepository) Create(
	format string,
	mode models.SessionMode,
	isAIOpponent bool,
	pauseMode models.PauseMode,
	topic string,
) (*models.Session, error) {
	query := `
		INSERT INTO sessions (format, mode, is_ai_opponent, pause_mode, topic, status, current_phase)
		VALUES ($1, $2, $3, $4, $5, 'reserved', 'prep')
		RETURNING ` + sessionColumns

	session := &models.Session{}
	err := scanSession(r.db.QueryRow(query, format, mode, isAIOpponent, pauseMode, topic), session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// FindByID ID로 세션 조회
func (r *SessionRepository) FindByID(id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session := &models.Session{}
	err := scanSession(r.db.QueryRow(query, id), session)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// MarkLive reserved → live 조건부 전이. prep 타이머가 이 시점부터
// 시작된다.
func (r *SessionRepository) MarkLive(sessionID string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE sessions
		SET status = 'live', started_at = NOW(), phase_started_at = NOW()
		WHERE id = $1 AND status = 'reserved'
	`, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to mark session live: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// AdvancePhase "현재 phase가 expected일 때만 next로" 단일 조건부
// 쓰기. 두 클라이언트가 같은 전이를 두고 경쟁해도 한 쪽만 성공하고,
// 진 쪽은 change feed로 이미 갱신된 phase를 관찰한다.
func (r *SessionRepository) AdvancePhase(sessionID string, expected, next models.Phase) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE sessions
		SET current_phase = $1, phase_started_at = NOW()
		WHERE id = $2 AND current_phase = $3 AND status = 'live'
	`, next, sessionID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to advance phase: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// Complete live → completed 전이 (results 도달 시)
func (r *SessionRepository) Complete(sessionID, endReason string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE sessions
		SET status = 'completed', ended_at = NOW(), end_reason = $1
		WHERE id = $2 AND status = 'live'
	`, endReason, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// Abandon live 세션에만 적용 가능. 이미 종료된 세션에는 no-op.
func (r *SessionRepository) Abandon(sessionID, endReason string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE sessions
		SET status = 'abandoned', ended_at = NOW(), end_reason = $1
		WHERE id = $2 AND status = 'live'
	`, endReason, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to abandon session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// DeleteReserved 참가자가 붙기 전의 reserved 세션 정리 (매칭 CAS 실패
// 시 롤백 경로)
func (r *SessionRepository) DeleteReserved(sessionID string) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE id = $1 AND status = 'reserved'`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete reserved session: %w", err)
	}
	return nil
}

// SaveFeedback 심판 피드백 저장 (JSONB)
func (r *SessionRepository) SaveFeedback(sessionID string, feedback interface{}) error {
	data, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	_, err = r.db.Exec(`UPDATE sessions SET feedback = $1 WHERE id = $2`, data, sessionID)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	return nil
}

// GetFeedback 저장된 심판 피드백 조회 (없으면 nil)
func (r *SessionRepository) GetFeedback(sessionID string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(`SELECT feedback FROM sessions WHERE id = $1`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return data, nil
}

// AddSpeech transcript에 발언 추가
func (r *SessionRepository) AddSpeech(sessionID string, phase models.Phase, side models.Side, content string) (*models.Speech, error) {
	query := `
		INSERT INTO speeches (session_id, phase, side, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, phase, side, content, created_at
	`

	speech := &models.Speech{}
	err := r.db.QueryRow(query, sessionID, phase, side, content).Scan(
		&speech.ID,
		&speech.SessionID,
		&speech.Phase,
		&speech.Side,
		&speech.Content,
		&speech.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add speech: %w", err)
	}

	return speech, nil
}

// ListSpeeches 세션 transcript (시간순)
func (r *SessionRepository) ListSpeeches(sessionID string) ([]models.Speech, error) {
	query := `
		SELECT id, session_id, phase, side, content, created_at
		FROM speeches
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list speeches: %w", err)
	}
	defer rows.Close()

	var speeches []models.Speech
	for rows.Next() {
		var s models.Speech
		if err := rows.Scan(&s.ID, &s.SessionID, &s.Phase, &s.Side, &s.Content, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan speech: %w", err)
		}
		speeches = append(speeches, s)
	}

	return speeches, rows.Err()
}

func scanSession(row rowScanner, s *models.Session) error {
	return row.Scan(
		&s.ID,
		&s.Format,
		&s.Mode,
		&s.Status,
		&s.IsAIOpponent,
		&s.CurrentPhase,
		&s.PhaseStartedAt,
		&s.PauseMode,
		&s.Topic,
		&s.StartedAt,
		&s.EndedAt,
		&s.EndReason,
		&s.CreatedAt,
	)
}
