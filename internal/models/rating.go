package models

import "time"

const DefaultRating = 1000

// RatingRecord identity별, format별 레이팅. Rating Engine만 변경한다.
type RatingRecord struct {
	IdentityID    string    `json:"identityId" db:"identity_id"`
	Format        string    `json:"format" db:"format"`
	Rating        int       `json:"rating" db:"rating"`
	TotalSessions int       `json:"totalSessions" db:"total_sessions"`
	TotalWins     int       `json:"totalWins" db:"total_wins"`
	CurrentStreak int       `json:"currentStreak" db:"current_streak"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// MatchHistoryEntry 정산된 세션의 불변 스냅샷. session_id UNIQUE가
// 정산 멱등성 가드 역할을 한다.
type MatchHistoryEntry struct {
	ID              string    `json:"id" db:"id"`
	SessionID       string    `json:"sessionId" db:"session_id"`
	Format          string    `json:"format" db:"format"`
	IdentityA       string    `json:"identityA" db:"identity_a"`
	IdentityB       string    `json:"identityB" db:"identity_b"`
	RatingABefore   int       `json:"ratingABefore" db:"rating_a_before"`
	RatingAAfter    int       `json:"ratingAAfter" db:"rating_a_after"`
	RatingBBefore   int       `json:"ratingBBefore" db:"rating_b_before"`
	RatingBAfter    int       `json:"ratingBAfter" db:"rating_b_after"`
	WinnerIdentity  *string   `json:"winnerIdentity,omitempty" db:"winner_identity"`
	DurationSeconds int       `json:"durationSeconds" db:"duration_seconds"`
	SettledAt       time.Time `json:"settledAt" db:"settled_at"`
}

// LeaderboardRow 리더보드 응답용 (users와 rating_records 조인)
type LeaderboardRow struct {
	IdentityID    string `json:"identityId" db:"identity_id"`
	Username      string `json:"username" db:"username"`
	Rating        int    `json:"rating" db:"rating"`
	TotalSessions int    `json:"totalSessions" db:"total_sessions"`
	TotalWins     int    `json:"totalWins" db:"total_wins"`
	CurrentStreak int    `json:"currentStreak" db:"current_streak"`
}
