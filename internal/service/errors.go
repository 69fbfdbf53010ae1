package service

import "errors"

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("resource not found")
)

// User service specific errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
)

// Queue service specific errors
var (
	ErrEntryNotFound     = errors.New("queue entry not found")
	ErrEntryNotWaiting   = errors.New("queue entry is no longer waiting")
	ErrInvalidFormat     = errors.New("invalid debate format")
	ErrInvalidMode       = errors.New("invalid session mode")
	ErrInvalidPreference = errors.New("invalid opponent preference")
	ErrInvalidPauseMode  = errors.New("invalid pause mode")
)

// Session service specific errors
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotLive    = errors.New("session is not live")
	ErrNotParticipant    = errors.New("not a participant of this session")
	ErrNotYourTurn       = errors.New("not the active side for this phase")
	ErrPhaseNotElapsed   = errors.New("phase timer has not elapsed")
	ErrPhaseChanged      = errors.New("phase already advanced")
	ErrDebateNotComplete = errors.New("debate is not complete")
)

// Rating service specific errors
var (
	ErrSessionNotSettleable = errors.New("session is not eligible for rating settlement")
	ErrSubmissionsMissing   = errors.New("both result submissions are required")
	ErrInconsistentResults  = errors.New("submitted results are inconsistent")
	ErrAlreadySettled       = errors.New("session already settled")
)
