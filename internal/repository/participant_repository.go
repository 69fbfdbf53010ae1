package repository

import (
	"database/sql"
	"fmt"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/pkg/database"
)

type ParticipantRepository struct {
	db *database.DB
}

func NewParticipantRepository(db *database.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

const participantColumns = `id, session_id, identity_id, is_ai, side,
	speaking_order, connected_at, disconnected_at`

// Create 참가자 생성. identityID가 nil이면 AI 대역이다. side와
// speaking_order는 생성 후 변경되지 않는다.
func (r *ParticipantRepository) Create(
	sessionID string,
	identityID *string,
	isAI bool,
	side models.Side,
	speakingOrder int,
) (*models.Participant, error) {
	query := `
		INSERT INTO participants (session_id, identity_id, is_ai, side, speaking_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + participantColumns

	p := &models.Participant{}
	err := scanParticipant(r.db.QueryRow(query, sessionID, identityID, isAI, side, speakingOrder), p)
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	return p, nil
}

// ListBySession 세션의 참가자 목록 (항상 2명)
func (r *ParticipantRepository) ListBySession(sessionID string) ([]models.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE session_id = $1
		ORDER BY speaking_order ASC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := scanParticipant(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// FindByIdentity 세션 내 특정 identity의 참가자 조회
func (r *ParticipantRepository) FindByIdentity(sessionID, identityID string) (*models.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE session_id = $1 AND identity_id = $2
	`

	p := &models.Participant{}
	err := scanParticipant(r.db.QueryRow(query, sessionID, identityID), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}

	return p, nil
}

// MarkConnected 참가자 접속 기록
func (r *ParticipantRepository) MarkConnected(participantID string) error {
	_, err := r.db.Exec(
		`UPDATE participants SET connected_at = NOW(), disconnected_at = NULL WHERE id = $1`,
		participantID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark participant connected: %w", err)
	}
	return nil
}

// MarkDisconnected 참가자 이탈 기록
func (r *ParticipantRepository) MarkDisconnected(participantID string) error {
	_, err := r.db.Exec(
		`UPDATE participants SET disconnected_at = NOW() WHERE id = $1`,
		participantID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark participant disconnected: %w", err)
	}
	return nil
}

// CountConnected 접속 완료된 참가자 수 (AI는 항상 접속한 것으로 취급)
func (r *ParticipantRepository) CountConnected(sessionID string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM participants
		WHERE session_id = $1 AND (is_ai OR connected_at IS NOT NULL)
	`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count connected participants: %w", err)
	}
	return count, nil
}

func scanParticipant(row rowScanner, p *models.Participant) error {
	return row.Scan(
		&p.ID,
		&p.SessionID,
		&p.IdentityID,
		&p.IsAI,
		&p.Side,
		&p.SpeakingOrder,
		&p.ConnectedAt,
		&p.DisconnectedAt,
	)
}
