package service

import (
	"math"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/internal/repository"
	"github.com/debate-arena/debate-arena-backend/pkg/logger"
)

type submissionStore interface {
	Upsert(sessionID, submitterID string, result models.Result) (*models.ResultSubmission, error)
	ListBySession(sessionID string) ([]models.ResultSubmission, error)
}

type ratingStore interface {
	GetOrCreate(identityID, format string) (*models.RatingRecord, error)
	ApplySettlement(entry *models.MatchHistoryEntry, a, b repository.SettlementUpdate) (bool, error)
	FindHistoryBySession(sessionID string) (*models.MatchHistoryEntry, error)
	ListHistoryByIdentity(identityID string, limit, offset int) ([]models.MatchHistoryEntry, error)
	Leaderboard(format string, limit int) ([]models.LeaderboardRow, error)
}

type ratingSessionReader interface {
	FindByID(id string) (*models.Session, error)
}

type ratingParticipantReader interface {
	FindByIdentity(sessionID, identityID string) (*models.Participant, error)
}

// Submission outcome states surfaced to the caller.
const (
	OutcomeRecorded     = "recorded"
	OutcomeSettled      = "settled"
	OutcomeInconsistent = "inconsistent_results"
	OutcomeNotRated     = "not_rated"
)

// SubmitOutcome 결과 제출 후의 상태
type SubmitOutcome struct {
	Submission *models.ResultSubmission `json:"submission"`
	Status     string                   `json:"status"`
	Settlement *SettlementResult        `json:"settlement,omitempty"`
}

// SettlementResult 정산 결과 (양쪽 레이팅 변화)
type SettlementResult struct {
	IdentityA string `json:"identityA"`
	IdentityB string `json:"identityB"`
	DeltaA    int    `json:"deltaA"`
	DeltaB    int    `json:"deltaB"`
	NewA      int    `json:"newA"`
	NewB      int    `json:"newB"`
}

type RatingService struct {
	submissionStore  submissionStore
	ratingStore      ratingStore
	sessionReader    ratingSessionReader
	participantStore ratingParticipantReader
}

func NewRatingService(
	submissionStore submissionStore,
	ratingStore ratingStore,
	sessionReader ratingSessionReader,
	participantStore ratingParticipantReader,
) *RatingService {
	return &RatingService{
		submissionStore:  submissionStore,
		ratingStore:      ratingStore,
		sessionReader:    sessionReader,
		participantStore: participantStore,
	}
}

// SubmitResult 참가자의 결과 선언. 두 번째 제출이 들어오면 정산을
// 시도한다. 재제출은 기존 제출을 덮어쓴다 (불일치 해소 경로).
func (s *RatingService) SubmitResult(sessionID, identityID string, result models.Result) (*SubmitOutcome, error) {
	switch result {
	case models.ResultWin, models.ResultLoss, models.ResultDraw:
	default:
		return nil, ErrInvalidInput
	}

	session, err := s.sessionReader.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !resultsOpen(session) {
		return nil, ErrDebateNotComplete
	}

	participant, err := s.participantStore.FindByIdentity(sessionID, identityID)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, ErrNotParticipant
	}

	submission, err := s.submissionStore.Upsert(sessionID, identityID, result)
	if err != nil {
		return nil, err
	}

	outcome := &SubmitOutcome{Submission: submission, Status: OutcomeRecorded}

	if session.Mode != models.ModeRanked || session.IsAIOpponent {
		outcome.Status = OutcomeNotRated
		return outcome, nil
	}

	settlement, err := s.Settle(sessionID)
	switch err {
	case nil:
		outcome.Status = OutcomeSettled
		outcome.Settlement = settlement
	case ErrSubmissionsMissing, ErrSessionNotSettleable:
		// 상대 제출 대기 중이거나 세션이 아직 completed로 닫히지 않음
	case ErrInconsistentResults:
		outcome.Status = OutcomeInconsistent
	case ErrAlreadySettled:
		outcome.Status = OutcomeSettled
	default:
		return nil, err
	}

	return outcome, nil
}

// Settle 세션 정산. 두 제출이 일관될 때만 양쪽 레이팅을 갱신하고
// 히스토리를 남긴다. 이미 정산된 세션에는 ErrAlreadySettled.
func (s *RatingService) Settle(sessionID string) (*SettlementResult, error) {
	session, err := s.sessionReader.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Mode != models.ModeRanked || session.IsAIOpponent ||
		session.Status != models.SessionStatusCompleted {
		return nil, ErrSessionNotSettleable
	}

	submissions, err := s.submissionStore.ListBySession(sessionID)
	if err != nil {
		return nil, err
	}
	if len(submissions) < 2 {
		return nil, ErrSubmissionsMissing
	}

	subA, subB := submissions[0], submissions[1]
	if !models.ConsistentResults(subA.Result, subB.Result) {
		return nil, ErrInconsistentResults
	}

	recordA, err := s.ratingStore.GetOrCreate(subA.SubmitterIdentityID, session.Format)
	if err != nil {
		return nil, err
	}
	recordB, err := s.ratingStore.GetOrCreate(subB.SubmitterIdentityID, session.Format)
	if err != nil {
		return nil, err
	}

	scoreA := scoreFor(subA.Result)
	expectedA := expectedScore(float64(recordA.Rating), float64(recordB.Rating))
	expectedB := 1.0 - expectedA

	// K-factor는 각자 자기 레이팅 구간을 따른다
	newA := int(math.Round(float64(recordA.Rating) + kFactor(recordA.Rating)*(scoreA-expectedA)))
	newB := int(math.Round(float64(recordB.Rating) + kFactor(recordB.Rating)*((1.0-scoreA)-expectedB)))

	var winner *string
	switch subA.Result {
	case models.ResultWin:
		id := subA.SubmitterIdentityID
		winner = &id
	case models.ResultLoss:
		id := subB.SubmitterIdentityID
		winner = &id
	}

	entry := &models.MatchHistoryEntry{
		SessionID:       sessionID,
		Format:          session.Format,
		IdentityA:       subA.SubmitterIdentityID,
		IdentityB:       subB.SubmitterIdentityID,
		RatingABefore:   recordA.Rating,
		RatingAAfter:    newA,
		RatingBBefore:   recordB.Rating,
		RatingBAfter:    newB,
		WinnerIdentity:  winner,
		DurationSeconds: sessionDurationSeconds(session),
	}

	applied, err := s.ratingStore.ApplySettlement(entry,
		repository.SettlementUpdate{
			IdentityID: subA.SubmitterIdentityID,
			NewRating:  newA,
			Won:        subA.Result == models.ResultWin,
			Draw:       subA.Result == models.ResultDraw,
		},
		repository.SettlementUpdate{
			IdentityID: subB.SubmitterIdentityID,
			NewRating:  newB,
			Won:        subB.Result == models.ResultWin,
			Draw:       subB.Result == models.ResultDraw,
		},
	)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrAlreadySettled
	}

	logger.Info("Session settled",
		"sessionId", sessionID,
		"deltaA", newA-recordA.Rating,
		"deltaB", newB-recordB.Rating)

	return &SettlementResult{
		IdentityA: subA.SubmitterIdentityID,
		IdentityB: subB.SubmitterIdentityID,
		DeltaA:    newA - recordA.Rating,
		DeltaB:    newB - recordB.Rating,
		NewA:      newA,
		NewB:      newB,
	}, nil
}

// GetRating identity의 format별 레이팅 조회
func (s *RatingService) GetRating(identityID, format string) (*models.RatingRecord, error) {
	if _, ok := models.FormatByName(format); !ok {
		return nil, ErrInvalidFormat
	}
	return s.ratingStore.GetOrCreate(identityID, format)
}

// GetOrCreate 큐 서비스가 쓰는 레이팅 조회 (ratingReader 구현)
func (s *RatingService) GetOrCreate(identityID, format string) (*models.RatingRecord, error) {
	return s.ratingStore.GetOrCreate(identityID, format)
}

// Leaderboard format별 리더보드
func (s *RatingService) Leaderboard(format string, limit int) ([]models.LeaderboardRow, error) {
	if _, ok := models.FormatByName(format); !ok {
		return nil, ErrInvalidFormat
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.ratingStore.Leaderboard(format, limit)
}

// History identity의 정산 기록
func (s *RatingService) History(identityID string, limit, offset int) ([]models.MatchHistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.ratingStore.ListHistoryByIdentity(identityID, limit, offset)
}

// SessionHistory 세션의 정산 기록 조회
func (s *RatingService) SessionHistory(sessionID string) (*models.MatchHistoryEntry, error) {
	entry, err := s.ratingStore.FindHistoryBySession(sessionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}

// resultsOpen 결과 제출을 받을 수 있는 상태인지. 토론이 끝난 live
// 세션 (results 직전 단계 포함)과 completed 세션이 대상이다.
func resultsOpen(session *models.Session) bool {
	if session.Status == models.SessionStatusCompleted {
		return true
	}
	return session.Status == models.SessionStatusLive && pastDebate(session.CurrentPhase)
}

func scoreFor(r models.Result) float64 {
	switch r {
	case models.ResultWin:
		return 1.0
	case models.ResultDraw:
		return 0.5
	}
	return 0.0
}

// kFactor 레이팅 구간별 변동 폭: 낮은 구간은 빠르게 수렴하고 높은
// 구간은 안정적으로 움직인다. 경계값 1200은 낮은 구간에 속한다.
func kFactor(rating int) float64 {
	switch {
	case rating <= 1200:
		return 40.0
	case rating < 2000:
		return 20.0
	}
	return 10.0
}

func expectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}

func sessionDurationSeconds(session *models.Session) int {
	if session.StartedAt == nil || session.EndedAt == nil {
		return 0
	}
	return int(session.EndedAt.Sub(*session.StartedAt).Seconds())
}
