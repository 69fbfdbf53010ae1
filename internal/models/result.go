package models

import "time"

type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// ResultSubmission 세션당 참가자별 1건 (PK: session_id, submitter)
type ResultSubmission struct {
	SessionID           string    `json:"sessionId" db:"session_id"`
	SubmitterIdentityID string    `json:"submitterIdentityId" db:"submitter_identity_id"`
	Result              Result    `json:"result" db:"result"`
	SubmittedAt         time.Time `json:"submittedAt" db:"submitted_at"`
}

// ConsistentResults reports whether two submissions agree: one win plus
// one loss (either order), or both draw.
func ConsistentResults(a, b Result) bool {
	if a == ResultDraw && b == ResultDraw {
		return true
	}
	return (a == ResultWin && b == ResultLoss) || (a == ResultLoss && b == ResultWin)
}
