package models

import "time"

type SessionStatus string

const (
	SessionStatusReserved  SessionStatus = "reserved"
	SessionStatusLive      SessionStatus = "live"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

type Phase string

// 고정된 진행 순서. proposition이 모든 쌍 phase에서 먼저 발언한다.
const (
	PhasePrep             Phase = "prep"
	PhasePropConstructive Phase = "prop_constructive"
	PhaseOppConstructive  Phase = "opp_constructive"
	PhasePropRebuttal     Phase = "prop_rebuttal"
	PhaseOppRebuttal      Phase = "opp_rebuttal"
	PhasePropClosing      Phase = "prop_closing"
	PhaseOppClosing       Phase = "opp_closing"
	PhaseDebateComplete   Phase = "debate_complete"
	PhaseJudging          Phase = "judging"
	PhaseResults          Phase = "results"
)

// PhaseOrder 전체 phase 순서 (skip/repeat 없음)
var PhaseOrder = []Phase{
	PhasePrep,
	PhasePropConstructive,
	PhaseOppConstructive,
	PhasePropRebuttal,
	PhaseOppRebuttal,
	PhasePropClosing,
	PhaseOppClosing,
	PhaseDebateComplete,
	PhaseJudging,
	PhaseResults,
}

// NextPhase returns the phase that follows p, or "" when p is terminal
// or unknown.
func NextPhase(p Phase) Phase {
	for i, cur := range PhaseOrder {
		if cur == p && i+1 < len(PhaseOrder) {
			return PhaseOrder[i+1]
		}
	}
	return ""
}

// ActiveSide returns the side holding the floor during p, or "" for
// phases with no speaker.
func ActiveSide(p Phase) Side {
	switch p {
	case PhasePropConstructive, PhasePropRebuttal, PhasePropClosing:
		return SideProposition
	case PhaseOppConstructive, PhaseOppRebuttal, PhaseOppClosing:
		return SideOpposition
	}
	return ""
}

type PauseMode string

const (
	PauseManual PauseMode = "manual"
	PauseAuto   PauseMode = "auto"
	PauseBoth   PauseMode = "both"
)

type Session struct {
	ID             string        `json:"id" db:"id"`
	Format         string        `json:"format" db:"format"`
	Mode           SessionMode   `json:"mode" db:"mode"`
	Status         SessionStatus `json:"status" db:"status"`
	IsAIOpponent   bool          `json:"isAiOpponent" db:"is_ai_opponent"`
	CurrentPhase   Phase         `json:"currentPhase" db:"current_phase"`
	PhaseStartedAt *time.Time    `json:"phaseStartedAt,omitempty" db:"phase_started_at"`
	PauseMode      PauseMode     `json:"pauseMode" db:"pause_mode"`
	Topic          string        `json:"topic" db:"topic"`
	StartedAt      *time.Time    `json:"startedAt,omitempty" db:"started_at"`
	EndedAt        *time.Time    `json:"endedAt,omitempty" db:"ended_at"`
	EndReason      *string       `json:"endReason,omitempty" db:"end_reason"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
}

// TimerState 클라이언트 재동기화용 타이머 상태. remaining은 항상
// phase_duration - (now - phase_started_at)로 계산하며 클라이언트
// 로컬 카운트다운 값을 신뢰하지 않는다.
type TimerState struct {
	Phase            Phase `json:"phase"`
	DurationSeconds  int   `json:"durationSeconds"`
	RemainingSeconds int   `json:"remainingSeconds"`
}

// Speech 한 phase에서 한 쪽이 제출한 발언 (transcript 구성 요소)
type Speech struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"sessionId" db:"session_id"`
	Phase     Phase     `json:"phase" db:"phase"`
	Side      Side      `json:"side" db:"side"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
