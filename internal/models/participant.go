package models

import "time"

type Side string

const (
	SideProposition Side = "proposition"
	SideOpposition  Side = "opposition"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideProposition {
		return SideOpposition
	}
	return SideProposition
}

// Participant 세션의 한 쪽. identity_id가 nil이면 AI 대역.
// side는 생성 시 고정되고 이후 변경되지 않는다.
type Participant struct {
	ID             string     `json:"id" db:"id"`
	SessionID      string     `json:"sessionId" db:"session_id"`
	IdentityID     *string    `json:"identityId,omitempty" db:"identity_id"`
	IsAI           bool       `json:"isAi" db:"is_ai"`
	Side           Side       `json:"side" db:"side"`
	SpeakingOrder  int        `json:"speakingOrder" db:"speaking_order"`
	ConnectedAt    *time.Time `json:"connectedAt,omitempty" db:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty" db:"disconnected_at"`
}
