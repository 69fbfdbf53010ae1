package service

import (
	"context"
	"time"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/pkg/logger"
	"github.com/debate-arena/debate-arena-backend/pkg/speechgen"
)

type sessionStore interface {
	FindByID(id string) (*models.Session, error)
	MarkLive(sessionID string) (bool, error)
	AdvancePhase(sessionID string, expected, next models.Phase) (bool, error)
	Complete(sessionID, endReason string) (bool, error)
	Abandon(sessionID, endReason string) (bool, error)
	SaveFeedback(sessionID string, feedback interface{}) error
	GetFeedback(sessionID string) ([]byte, error)
	AddSpeech(sessionID string, phase models.Phase, side models.Side, content string) (*models.Speech, error)
	ListSpeeches(sessionID string) ([]models.Speech, error)
}

type participantStore interface {
	ListBySession(sessionID string) ([]models.Participant, error)
	FindByIdentity(sessionID, identityID string) (*models.Participant, error)
	MarkConnected(participantID string) error
	MarkDisconnected(participantID string) error
	CountConnected(sessionID string) (int, error)
}

type speechGenerator interface {
	GenerateSpeech(ctx context.Context, req speechgen.SpeechRequest) (*speechgen.SpeechResponse, error)
	GenerateFeedback(ctx context.Context, req speechgen.FeedbackRequest) (*speechgen.FeedbackResponse, error)
}

type transcriptArchive interface {
	SaveTranscript(sessionID string, transcript interface{}) (string, error)
}

// SessionView 조회 응답: 세션 + 참가자 + 재동기화용 타이머
type SessionView struct {
	Session      *models.Session      `json:"session"`
	Participants []models.Participant `json:"participants"`
	Timer        *models.TimerState   `json:"timer"`
}

type SessionService struct {
	sessionStore     sessionStore
	participantStore participantStore
	generator        speechGenerator
	archive          transcriptArchive
	notifier         Notifier
	feed             ChangeFeed
}

func NewSessionService(
	sessionStore sessionStore,
	participantStore participantStore,
	generator speechGenerator,
	archive transcriptArchive,
	notifier Notifier,
	feed ChangeFeed,
) *SessionService {
	return &SessionService{
		sessionStore:     sessionStore,
		participantStore: participantStore,
		generator:        generator,
		archive:          archive,
		notifier:         notifier,
		feed:             feed,
	}
}

// Get 세션 조회
func (s *SessionService) Get(sessionID string) (*SessionView, error) {
	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	participants, err := s.participantStore.ListBySession(sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionView{
		Session:      session,
		Participants: participants,
		Timer:        timerState(session),
	}, nil
}

// Join 참가자 입장. 두 번째 참가자가 들어오면 reserved → live로
// 전이하고 prep 타이머가 시작된다. AI 대역은 항상 입장한 것으로
// 취급되므로 AI 세션은 사람이 들어오는 즉시 live가 된다.
func (s *SessionService) Join(ctx context.Context, sessionID, identityID string) (*SessionView, error) {
	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	participant, err := s.participantStore.FindByIdentity(sessionID, identityID)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, ErrNotParticipant
	}

	if err := s.participantStore.MarkConnected(participant.ID); err != nil {
		return nil, err
	}

	if session.Status == models.SessionStatusReserved {
		connected, err := s.participantStore.CountConnected(sessionID)
		if err != nil {
			return nil, err
		}
		if connected >= 2 {
			ok, err := s.sessionStore.MarkLive(sessionID)
			if err != nil {
				return nil, err
			}
			if ok {
				s.broadcastStatus(ctx, sessionID, string(models.SessionStatusLive), "")
				s.broadcastPhase(ctx, sessionID, session.Format, models.PhasePrep, time.Now())
			}
		}
	}

	return s.Get(sessionID)
}

// Timer 타이머 재동기화. 남은 시간은 항상 서버 기준으로 계산한다.
func (s *SessionService) Timer(sessionID string) (*models.TimerState, error) {
	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	return timerState(session), nil
}

// Advance phase 전이 요청. expected가 현재 phase와 다르면 이미 다른
// 쪽이 전이한 것이므로 ErrPhaseChanged를 돌려주고 호출자는 현재
// 상태를 다시 읽는다.
//
// 권한 규칙: 발언 phase에서는 발언권을 가진 쪽이 언제든 끝낼 수 있고,
// 상대는 타이머가 소진된 후에만 (시간 초과 강제 전이) 요청할 수 있다.
func (s *SessionService) Advance(ctx context.Context, sessionID, identityID string, expected models.Phase) (*models.Session, error) {
	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != models.SessionStatusLive {
		return nil, ErrSessionNotLive
	}

	participant, err := s.participantStore.FindByIdentity(sessionID, identityID)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, ErrNotParticipant
	}

	if session.CurrentPhase != expected {
		return nil, ErrPhaseChanged
	}

	if expected == models.PhaseDebateComplete {
		// 심판 단계 트리거 (보통 자동으로 돌지만 재시도 경로로 열어둔다)
		go s.runJudging(sessionID)
		return session, nil
	}
	if expected == models.PhaseJudging || expected == models.PhaseResults {
		return nil, ErrInvalidInput
	}

	if active := models.ActiveSide(expected); active != "" && participant.Side != active {
		if remainingSeconds(session) > 0 {
			return nil, ErrNotYourTurn
		}
	}

	return s.advance(ctx, session, expected)
}

// advance CAS 전이 수행 후 후속 단계 (AI 발언, 심판)를 건다.
func (s *SessionService) advance(ctx context.Context, session *models.Session, expected models.Phase) (*models.Session, error) {
	next := models.NextPhase(expected)
	if next == "" {
		return nil, ErrInvalidInput
	}

	ok, err := s.sessionStore.AdvancePhase(session.ID, expected, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPhaseChanged
	}

	logger.Info("Phase advanced", "sessionId", session.ID, "from", expected, "to", next)
	s.broadcastPhase(ctx, session.ID, session.Format, next, time.Now())

	s.afterAdvance(session, next)

	return s.sessionStore.FindByID(session.ID)
}

// afterAdvance 전이 후 오케스트레이션. AI가 발언권을 가지면 대리
// 발언을 생성하고, 토론이 끝나면 심판 파이프라인을 돌린다.
func (s *SessionService) afterAdvance(session *models.Session, phase models.Phase) {
	if phase == models.PhaseDebateComplete {
		go s.runJudging(session.ID)
		return
	}

	if session.IsAIOpponent && models.ActiveSide(phase) != "" {
		go s.maybeRunAISpeech(session.ID, phase)
	}
}

// maybeRunAISpeech phase의 발언권이 AI 쪽이면 발언을 생성해 기록하고
// 전이한다. 생성 실패 시에도 폴백 발언으로 진행한다.
func (s *SessionService) maybeRunAISpeech(sessionID string, phase models.Phase) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil || session == nil {
		return
	}
	if session.Status != models.SessionStatusLive || session.CurrentPhase != phase {
		return
	}

	aiSide, ok, err := s.aiSide(sessionID)
	if err != nil || !ok {
		return
	}
	if models.ActiveSide(phase) != aiSide {
		return
	}

	transcript, err := s.transcriptLines(sessionID)
	if err != nil {
		logger.Error("Failed to load transcript for AI speech", "sessionId", sessionID, "error", err)
		return
	}

	resp, err := s.generator.GenerateSpeech(ctx, speechgen.SpeechRequest{
		Topic:      session.Topic,
		Side:       string(aiSide),
		Phase:      string(phase),
		Transcript: transcript,
	})
	if err != nil {
		logger.Error("AI speech generation failed", "sessionId", sessionID, "error", err)
		return
	}

	if _, err := s.sessionStore.AddSpeech(sessionID, phase, aiSide, resp.Content); err != nil {
		logger.Error("Failed to record AI speech", "sessionId", sessionID, "error", err)
		return
	}

	if _, err := s.advance(ctx, session, phase); err != nil && err != ErrPhaseChanged {
		logger.Error("Failed to advance after AI speech", "sessionId", sessionID, "error", err)
	}
}

// runJudging debate_complete → judging → results 파이프라인. 시작
// CAS를 이긴 쪽만 심판을 호출하므로 중복 실행되지 않는다.
func (s *SessionService) runJudging(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ok, err := s.sessionStore.AdvancePhase(sessionID, models.PhaseDebateComplete, models.PhaseJudging)
	if err != nil {
		logger.Error("Failed to enter judging", "sessionId", sessionID, "error", err)
		return
	}
	if !ok {
		return
	}

	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil || session == nil {
		return
	}

	s.broadcastPhase(ctx, sessionID, session.Format, models.PhaseJudging, time.Now())

	transcript, err := s.transcriptLines(sessionID)
	if err != nil {
		logger.Error("Failed to load transcript for judging", "sessionId", sessionID, "error", err)
		transcript = nil
	}

	feedback, err := s.generator.GenerateFeedback(ctx, speechgen.FeedbackRequest{
		Topic:      session.Topic,
		Format:     session.Format,
		Transcript: transcript,
	})
	if err != nil {
		logger.Error("Judging failed", "sessionId", sessionID, "error", err)
		return
	}

	if err := s.sessionStore.SaveFeedback(sessionID, feedback); err != nil {
		logger.Error("Failed to save feedback", "sessionId", sessionID, "error", err)
	}

	if ok, err := s.sessionStore.AdvancePhase(sessionID, models.PhaseJudging, models.PhaseResults); err != nil || !ok {
		return
	}
	s.broadcastPhase(ctx, sessionID, session.Format, models.PhaseResults, time.Now())

	if ok, err := s.sessionStore.Complete(sessionID, "completed"); err == nil && ok {
		s.broadcastStatus(ctx, sessionID, string(models.SessionStatusCompleted), "completed")
	}

	s.archiveTranscript(sessionID, feedback)
}

// SubmitSpeech 발언 기록. 발언권을 가진 쪽만 제출할 수 있고 제출과
// 동시에 해당 phase가 끝난다.
func (s *SessionService) SubmitSpeech(ctx context.Context, sessionID, identityID, content string) (*models.Speech, error) {
	if content == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != models.SessionStatusLive {
		return nil, ErrSessionNotLive
	}

	participant, err := s.participantStore.FindByIdentity(sessionID, identityID)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, ErrNotParticipant
	}

	phase := session.CurrentPhase
	if models.ActiveSide(phase) != participant.Side {
		return nil, ErrNotYourTurn
	}

	speech, err := s.sessionStore.AddSpeech(sessionID, phase, participant.Side, content)
	if err != nil {
		return nil, err
	}

	// 발언 제출은 명시적 phase 종료 신호. 타이머 만료로 이미 전이된
	// 경우라면 CAS가 지는데, 발언 자체는 기록되었으므로 무시한다.
	if _, err := s.advance(ctx, session, phase); err != nil && err != ErrPhaseChanged {
		return nil, err
	}

	return speech, nil
}

// Leave 명시적 퇴장. live 세션은 abandoned로 전이하고 레이팅 변동은
// 없다.
func (s *SessionService) Leave(ctx context.Context, sessionID, identityID string) error {
	return s.dropParticipant(ctx, sessionID, identityID, "participant_left")
}

// HandleDisconnect websocket 연결 끊김 처리 (hub 콜백)
func (s *SessionService) HandleDisconnect(identityID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.dropParticipant(ctx, sessionID, identityID, "participant_disconnected"); err != nil {
		if err != ErrSessionNotFound && err != ErrNotParticipant {
			logger.Error("Failed to handle disconnect", "sessionId", sessionID, "error", err)
		}
	}
}

func (s *SessionService) dropParticipant(ctx context.Context, sessionID, identityID, reason string) error {
	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	participant, err := s.participantStore.FindByIdentity(sessionID, identityID)
	if err != nil {
		return err
	}
	if participant == nil {
		return ErrNotParticipant
	}

	if err := s.participantStore.MarkDisconnected(participant.ID); err != nil {
		return err
	}

	// 심판 단계까지 간 세션은 이탈해도 결과가 나온다
	if session.Status == models.SessionStatusLive && !pastDebate(session.CurrentPhase) {
		ok, err := s.sessionStore.Abandon(sessionID, reason)
		if err != nil {
			return err
		}
		if ok {
			logger.Info("Session abandoned", "sessionId", sessionID, "reason", reason)
			s.broadcastStatus(ctx, sessionID, string(models.SessionStatusAbandoned), reason)
		}
	}

	return nil
}

// Transcript 세션 transcript 조회
func (s *SessionService) Transcript(sessionID string) ([]models.Speech, error) {
	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	return s.sessionStore.ListSpeeches(sessionID)
}

// Feedback 심판 피드백 조회 (아직 없으면 ErrNotFound)
func (s *SessionService) Feedback(sessionID string) ([]byte, error) {
	session, err := s.sessionStore.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	data, err := s.sessionStore.GetFeedback(sessionID)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	return data, nil
}

func (s *SessionService) aiSide(sessionID string) (models.Side, bool, error) {
	participants, err := s.participantStore.ListBySession(sessionID)
	if err != nil {
		return "", false, err
	}
	for _, p := range participants {
		if p.IsAI {
			return p.Side, true, nil
		}
	}
	return "", false, nil
}

func (s *SessionService) transcriptLines(sessionID string) ([]speechgen.TranscriptLine, error) {
	speeches, err := s.sessionStore.ListSpeeches(sessionID)
	if err != nil {
		return nil, err
	}

	lines := make([]speechgen.TranscriptLine, 0, len(speeches))
	for _, sp := range speeches {
		lines = append(lines, speechgen.TranscriptLine{
			Phase:   string(sp.Phase),
			Side:    string(sp.Side),
			Content: sp.Content,
		})
	}
	return lines, nil
}

func (s *SessionService) archiveTranscript(sessionID string, feedback *speechgen.FeedbackResponse) {
	if s.archive == nil {
		return
	}

	speeches, err := s.sessionStore.ListSpeeches(sessionID)
	if err != nil {
		logger.Error("Failed to load transcript for archive", "sessionId", sessionID, "error", err)
		return
	}

	path, err := s.archive.SaveTranscript(sessionID, map[string]interface{}{
		"sessionId": sessionID,
		"speeches":  speeches,
		"feedback":  feedback,
	})
	if err != nil {
		logger.Error("Failed to archive transcript", "sessionId", sessionID, "error", err)
		return
	}

	logger.Info("Transcript archived", "sessionId", sessionID, "path", path)
}

func (s *SessionService) broadcastPhase(ctx context.Context, sessionID, format string, phase models.Phase, startedAt time.Time) {
	remaining := phaseBudgetSeconds(format, phase)

	if s.notifier != nil {
		s.notifier.SendPhaseChange(sessionID, string(phase), remaining)
	}
	if s.feed != nil {
		if err := s.feed.PublishPhaseChange(ctx, sessionID, string(phase), remaining); err != nil {
			logger.Error("Failed to publish phase change", "sessionId", sessionID, "error", err)
		}
	}
}

func (s *SessionService) broadcastStatus(ctx context.Context, sessionID, status, reason string) {
	if s.notifier != nil {
		s.notifier.SendSessionStatus(sessionID, status, reason)
	}
	if s.feed != nil {
		if err := s.feed.PublishSessionStatus(ctx, sessionID, status, reason); err != nil {
			logger.Error("Failed to publish session status", "sessionId", sessionID, "error", err)
		}
	}
}

// pastDebate 발언이 모두 끝난 이후의 phase인지
func pastDebate(p models.Phase) bool {
	switch p {
	case models.PhaseDebateComplete, models.PhaseJudging, models.PhaseResults:
		return true
	}
	return false
}

func phaseBudgetSeconds(format string, phase models.Phase) int {
	profile, ok := models.FormatByName(format)
	if !ok {
		return 0
	}
	return int(profile.PhaseDuration(phase).Seconds())
}

// timerState 남은 시간 = phase 예산 - (now - phase_started_at)
func timerState(session *models.Session) *models.TimerState {
	return &models.TimerState{
		Phase:            session.CurrentPhase,
		DurationSeconds:  phaseBudgetSeconds(session.Format, session.CurrentPhase),
		RemainingSeconds: remainingSeconds(session),
	}
}

func remainingSeconds(session *models.Session) int {
	budget := phaseBudgetSeconds(session.Format, session.CurrentPhase)
	if budget == 0 || session.PhaseStartedAt == nil {
		return 0
	}

	elapsed := int(time.Since(*session.PhaseStartedAt).Seconds())
	remaining := budget - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
