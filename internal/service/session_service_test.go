package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/pkg/speechgen"
)

type sessionFixture struct {
	svc          *SessionService
	sessions     *memSessions
	participants *memParticipants
	notifier     *memNotifier
	generator    *fakeGenerator
	archive      *fakeArchive
}

func newSessionFixture() *sessionFixture {
	f := &sessionFixture{
		sessions:     newMemSessions(),
		participants: newMemParticipants(),
		notifier:     &memNotifier{},
		generator:    &fakeGenerator{},
		archive:      &fakeArchive{},
	}
	f.svc = NewSessionService(f.sessions, f.participants, f.generator, f.archive, f.notifier, nil)
	return f
}

// 사람 2명이 배정된 reserved 세션 생성
func (f *sessionFixture) reserveHumanSession(t *testing.T, format string) (sessionID, propUser, oppUser string) {
	t.Helper()

	session, err := f.sessions.Create(format, models.ModeRanked, false, models.PauseManual, "test motion")
	require.NoError(t, err)

	propUser, oppUser = "prop-user", "opp-user"
	_, err = f.participants.Create(session.ID, &propUser, false, models.SideProposition, 1)
	require.NoError(t, err)
	_, err = f.participants.Create(session.ID, &oppUser, false, models.SideOpposition, 2)
	require.NoError(t, err)

	return session.ID, propUser, oppUser
}

// 사람 + AI가 배정된 reserved 세션 생성 (사람이 proposition)
func (f *sessionFixture) reserveAISession(t *testing.T, format string) (sessionID, humanUser string) {
	t.Helper()

	session, err := f.sessions.Create(format, models.ModeCasual, true, models.PauseManual, "test motion")
	require.NoError(t, err)

	humanUser = "human-user"
	_, err = f.participants.Create(session.ID, &humanUser, false, models.SideProposition, 1)
	require.NoError(t, err)
	_, err = f.participants.Create(session.ID, nil, true, models.SideOpposition, 2)
	require.NoError(t, err)

	return session.ID, humanUser
}

func (f *sessionFixture) makeLive(t *testing.T, sessionID string) {
	t.Helper()
	ok, err := f.sessions.MarkLive(sessionID)
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *sessionFixture) currentPhase(t *testing.T, sessionID string) models.Phase {
	t.Helper()
	session, err := f.sessions.FindByID(sessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	return session.CurrentPhase
}

func TestSessionJoin_SecondParticipantGoesLive(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	sessionID, propUser, oppUser := f.reserveHumanSession(t, models.FormatStandard)

	view, err := f.svc.Join(ctx, sessionID, propUser)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusReserved, view.Session.Status)

	view, err = f.svc.Join(ctx, sessionID, oppUser)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusLive, view.Session.Status)
	assert.Equal(t, models.PhasePrep, view.Session.CurrentPhase)

	// live 전이와 함께 prep 타이머가 내려간다
	require.NotNil(t, view.Timer)
	assert.Equal(t, models.PhasePrep, view.Timer.Phase)
	assert.Equal(t, 120, view.Timer.DurationSeconds)

	assert.Equal(t, string(models.SessionStatusLive), f.notifier.lastStatus())
	assert.Contains(t, f.notifier.phases(), string(models.PhasePrep))
}

func TestSessionJoin_AISessionGoesLiveOnFirstJoin(t *testing.T) {
	f := newSessionFixture()
	sessionID, humanUser := f.reserveAISession(t, models.FormatBlitz)

	// AI 대역은 항상 입장한 것으로 치므로 사람이 들어오는 즉시 live
	view, err := f.svc.Join(context.Background(), sessionID, humanUser)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusLive, view.Session.Status)
}

func TestSessionJoin_Errors(t *testing.T) {
	f := newSessionFixture()
	sessionID, _, _ := f.reserveHumanSession(t, models.FormatStandard)

	_, err := f.svc.Join(context.Background(), "no-such-session", "prop-user")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.Join(context.Background(), sessionID, "stranger")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestAdvance_RunsFullPhaseChain(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	sessionID, propUser, oppUser := f.reserveHumanSession(t, models.FormatBlitz)
	f.makeLive(t, sessionID)

	// 각 phase를 발언권자가 종료한다 (prep은 아무나)
	steps := []struct {
		expected models.Phase
		caller   string
	}{
		{models.PhasePrep, propUser},
		{models.PhasePropConstructive, propUser},
		{models.PhaseOppConstructive, oppUser},
		{models.PhasePropRebuttal, propUser},
		{models.PhaseOppRebuttal, oppUser},
		{models.PhasePropClosing, propUser},
		{models.PhaseOppClosing, oppUser},
	}

	for _, step := range steps {
		require.Equal(t, step.expected, f.currentPhase(t, sessionID))
		_, err := f.svc.Advance(ctx, sessionID, step.caller, step.expected)
		require.NoError(t, err, "advancing from %s", step.expected)
	}

	// debate_complete 이후는 심판 파이프라인이 백그라운드로 끝까지 민다
	require.Eventually(t, func() bool {
		session, err := f.sessions.FindByID(sessionID)
		return err == nil && session != nil && session.Status == models.SessionStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	session, _ := f.sessions.FindByID(sessionID)
	assert.Equal(t, models.PhaseResults, session.CurrentPhase)

	feedback, err := f.svc.Feedback(sessionID)
	require.NoError(t, err)

	var stored speechgen.FeedbackResponse
	require.NoError(t, json.Unmarshal(feedback, &stored))
	assert.Equal(t, "close", stored.Verdict)
	assert.NotEmpty(t, stored.Categories)
	assert.NotEmpty(t, stored.ResearchSuggestions)

	f.archive.mu.Lock()
	saved := len(f.archive.saved)
	f.archive.mu.Unlock()
	assert.Equal(t, 1, saved)
}

func TestAdvance_StalePhaseConflicts(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	sessionID, propUser, oppUser := f.reserveHumanSession(t, models.FormatStandard)
	f.makeLive(t, sessionID)

	_, err := f.svc.Advance(ctx, sessionID, propUser, models.PhasePrep)
	require.NoError(t, err)

	// 이미 prop_constructive로 넘어갔으므로 prep 기준 요청은 충돌
	_, err = f.svc.Advance(ctx, sessionID, oppUser, models.PhasePrep)
	assert.ErrorIs(t, err, ErrPhaseChanged)
	assert.Equal(t, models.PhasePropConstructive, f.currentPhase(t, sessionID))
}

func TestAdvance_InactiveSideNeedsElapsedTimer(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	sessionID, propUser, oppUser := f.reserveHumanSession(t, models.FormatBlitz)
	f.makeLive(t, sessionID)

	_, err := f.svc.Advance(ctx, sessionID, propUser, models.PhasePrep)
	require.NoError(t, err)

	// 타이머가 남아 있는 동안 상대는 phase를 끝낼 수 없다
	_, err = f.svc.Advance(ctx, sessionID, oppUser, models.PhasePropConstructive)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	// 타이머 소진 후에는 강제 전이 가능
	past := time.Now().Add(-5 * time.Minute)
	f.sessions.mu.Lock()
	f.sessions.sessions[sessionID].PhaseStartedAt = &past
	f.sessions.mu.Unlock()

	_, err = f.svc.Advance(ctx, sessionID, oppUser, models.PhasePropConstructive)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseOppConstructive, f.currentPhase(t, sessionID))
}

func TestAdvance_RequiresLiveSession(t *testing.T) {
	f := newSessionFixture()
	sessionID, propUser, _ := f.reserveHumanSession(t, models.FormatStandard)

	_, err := f.svc.Advance(context.Background(), sessionID, propUser, models.PhasePrep)
	assert.ErrorIs(t, err, ErrSessionNotLive)
}

func TestSubmitSpeech_ActiveSideOnly(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	sessionID, propUser, oppUser := f.reserveHumanSession(t, models.FormatStandard)
	f.makeLive(t, sessionID)

	_, err := f.svc.Advance(ctx, sessionID, propUser, models.PhasePrep)
	require.NoError(t, err)

	_, err = f.svc.SubmitSpeech(ctx, sessionID, oppUser, "objection!")
	assert.ErrorIs(t, err, ErrNotYourTurn)

	speech, err := f.svc.SubmitSpeech(ctx, sessionID, propUser, "opening argument")
	require.NoError(t, err)
	assert.Equal(t, models.PhasePropConstructive, speech.Phase)
	assert.Equal(t, models.SideProposition, speech.Side)

	// 제출은 phase 종료를 겸한다
	assert.Equal(t, models.PhaseOppConstructive, f.currentPhase(t, sessionID))

	transcript, err := f.svc.Transcript(sessionID)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, "opening argument", transcript[0].Content)
}

func TestSubmitSpeech_RejectsEmptyContent(t *testing.T) {
	f := newSessionFixture()
	sessionID, propUser, _ := f.reserveHumanSession(t, models.FormatStandard)
	f.makeLive(t, sessionID)

	_, err := f.svc.SubmitSpeech(context.Background(), sessionID, propUser, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAISpeech_AdvancesOwnPhase(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	sessionID, humanUser := f.reserveAISession(t, models.FormatBlitz)
	f.makeLive(t, sessionID)

	_, err := f.svc.Advance(ctx, sessionID, humanUser, models.PhasePrep)
	require.NoError(t, err)

	_, err = f.svc.SubmitSpeech(ctx, sessionID, humanUser, "opening argument")
	require.NoError(t, err)

	// AI가 opp_constructive 발언을 생성하고 스스로 phase를 넘긴다
	require.Eventually(t, func() bool {
		session, err := f.sessions.FindByID(sessionID)
		return err == nil && session != nil && session.CurrentPhase == models.PhasePropRebuttal
	}, 2*time.Second, 10*time.Millisecond)

	transcript, err := f.svc.Transcript(sessionID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, models.SideOpposition, transcript[1].Side)
	assert.Equal(t, models.PhaseOppConstructive, transcript[1].Phase)
}

func TestLeave_AbandonsLiveSession(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	sessionID, propUser, oppUser := f.reserveHumanSession(t, models.FormatStandard)
	f.makeLive(t, sessionID)

	_, err := f.svc.Advance(ctx, sessionID, propUser, models.PhasePrep)
	require.NoError(t, err)

	require.NoError(t, f.svc.Leave(ctx, sessionID, oppUser))

	session, _ := f.sessions.FindByID(sessionID)
	assert.Equal(t, models.SessionStatusAbandoned, session.Status)
	require.NotNil(t, session.EndReason)
	assert.Equal(t, "participant_left", *session.EndReason)
	assert.Equal(t, string(models.SessionStatusAbandoned), f.notifier.lastStatus())
}

func TestLeave_AfterDebateKeepsSessionAlive(t *testing.T) {
	f := newSessionFixture()
	sessionID, _, oppUser := f.reserveHumanSession(t, models.FormatStandard)
	f.makeLive(t, sessionID)

	// 심판 단계까지 간 세션은 이탈해도 결과가 나와야 한다
	f.sessions.mu.Lock()
	f.sessions.sessions[sessionID].CurrentPhase = models.PhaseJudging
	f.sessions.mu.Unlock()

	require.NoError(t, f.svc.Leave(context.Background(), sessionID, oppUser))

	session, _ := f.sessions.FindByID(sessionID)
	assert.Equal(t, models.SessionStatusLive, session.Status)
}

func TestHandleDisconnect_SwallowsUnknownSession(t *testing.T) {
	f := newSessionFixture()

	// hub 콜백 경로: 세션이 없어도 패닉/로그 오류 없이 넘어가야 한다
	f.svc.HandleDisconnect("some-user", "no-such-session")
}

func TestFeedback_NotReady(t *testing.T) {
	f := newSessionFixture()
	sessionID, _, _ := f.reserveHumanSession(t, models.FormatStandard)

	_, err := f.svc.Feedback(sessionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTimer_ClampsToZero(t *testing.T) {
	f := newSessionFixture()
	sessionID, _, _ := f.reserveHumanSession(t, models.FormatBlitz)
	f.makeLive(t, sessionID)

	past := time.Now().Add(-10 * time.Minute)
	f.sessions.mu.Lock()
	f.sessions.sessions[sessionID].PhaseStartedAt = &past
	f.sessions.mu.Unlock()

	timer, err := f.svc.Timer(sessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, timer.RemainingSeconds)
	assert.Equal(t, 30, timer.DurationSeconds)
}
