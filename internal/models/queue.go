package models

import "time"

type QueueStatus string

const (
	QueueStatusWaiting   QueueStatus = "waiting"
	QueueStatusMatched   QueueStatus = "matched"
	QueueStatusCancelled QueueStatus = "cancelled"
	QueueStatusExpired   QueueStatus = "expired"
)

type OpponentPreference string

const (
	PreferHumanOnly   OpponentPreference = "human_only"
	PreferAIOnly      OpponentPreference = "ai_only"
	PreferHumanThenAI OpponentPreference = "human_then_ai"
)

type SessionMode string

const (
	ModeRanked SessionMode = "ranked"
	ModeCasual SessionMode = "casual"
)

// QueueEntry 매칭 대기열 항목. participant당 waiting 상태는 최대 1개
// (queue_entries의 partial unique index로 보장).
type QueueEntry struct {
	ID                 string             `json:"id" db:"id"`
	ParticipantID      string             `json:"participantId" db:"participant_id"`
	Format             string             `json:"format" db:"format"`
	Mode               SessionMode        `json:"mode" db:"mode"`
	OpponentPreference OpponentPreference `json:"opponentPreference" db:"opponent_preference"`
	PauseMode          PauseMode          `json:"pauseMode" db:"pause_mode"`
	SkillRating        int                `json:"skillRating" db:"skill_rating"`
	JoinedAt           time.Time          `json:"joinedAt" db:"joined_at"`
	LastHeartbeatAt    time.Time          `json:"lastHeartbeatAt" db:"last_heartbeat_at"`
	Status             QueueStatus        `json:"status" db:"status"`
	MatchedSessionID   *string            `json:"matchedSessionId,omitempty" db:"matched_session_id"`
}
