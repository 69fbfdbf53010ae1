package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debate-arena/debate-arena-backend/internal/models"
)

func newTestQueueService(q *memQueue, sessions *memSessions, participants *memParticipants) (*QueueService, *MatchmakingService) {
	m := newTestMatcher(q, sessions, participants, &memNotifier{})
	ratings := &fixedRatings{ratings: map[string]int{
		"user-a": 1200,
		"user-b": 1250,
	}}
	return NewQueueService(q, ratings, m, time.Hour), m
}

func TestJoin_RejectsInvalidInput(t *testing.T) {
	svc, _ := newTestQueueService(newMemQueue(), newMemSessions(), newMemParticipants())
	ctx := context.Background()

	tests := []struct {
		name       string
		format     string
		mode       models.SessionMode
		preference models.OpponentPreference
		wantErr    error
	}{
		{"unknown format", "marathon", models.ModeRanked, models.PreferHumanOnly, ErrInvalidFormat},
		{"unknown mode", models.FormatStandard, "tournament", models.PreferHumanOnly, ErrInvalidMode},
		{"unknown preference", models.FormatStandard, models.ModeRanked, "robots_only", ErrInvalidPreference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Join(ctx, "user-a", tt.format, tt.mode, tt.preference, models.PauseManual)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("unknown pause mode", func(t *testing.T) {
		_, err := svc.Join(ctx, "user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, "freeze")
		assert.ErrorIs(t, err, ErrInvalidPauseMode)
	})
}

func TestJoin_PauseModeDefaultsToManual(t *testing.T) {
	q := newMemQueue()
	svc, _ := newTestQueueService(q, newMemSessions(), newMemParticipants())

	result, err := svc.Join(context.Background(), "user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, "")
	require.NoError(t, err)
	assert.Equal(t, models.PauseManual, result.Entry.PauseMode)
}

func TestJoin_UsesStoredRatingAsSkill(t *testing.T) {
	q := newMemQueue()
	svc, _ := newTestQueueService(q, newMemSessions(), newMemParticipants())

	result, err := svc.Join(context.Background(), "user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual)
	require.NoError(t, err)
	require.NotNil(t, result.Entry)

	assert.Equal(t, 1200, result.Entry.SkillRating)
	assert.Equal(t, models.QueueStatusWaiting, result.Entry.Status)
	assert.Nil(t, result.Session)
}

func TestJoin_AIOnlyCreatesSessionImmediately(t *testing.T) {
	q := newMemQueue()
	sessions := newMemSessions()
	participants := newMemParticipants()
	svc, _ := newTestQueueService(q, sessions, participants)

	result, err := svc.Join(context.Background(), "user-a", models.FormatBlitz, models.ModeCasual, models.PreferAIOnly, models.PauseManual)
	require.NoError(t, err)
	require.NotNil(t, result.Session)

	assert.True(t, result.Session.IsAIOpponent)
	assert.Equal(t, models.QueueStatusMatched, result.Entry.Status)
	require.NotNil(t, result.Entry.MatchedSessionID)
	assert.Equal(t, result.Session.ID, *result.Entry.MatchedSessionID)

	list, _ := participants.ListBySession(result.Session.ID)
	assert.Len(t, list, 2)
}

func TestJoin_MatchesWaitingOpponent(t *testing.T) {
	q := newMemQueue()
	sessions := newMemSessions()
	svc, _ := newTestQueueService(q, sessions, newMemParticipants())
	ctx := context.Background()

	first, err := svc.Join(ctx, "user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual)
	require.NoError(t, err)
	require.Nil(t, first.Session)

	second, err := svc.Join(ctx, "user-b", models.FormatStandard, models.ModeRanked, models.PreferHumanThenAI, models.PauseManual)
	require.NoError(t, err)
	require.NotNil(t, second.Session)

	assert.False(t, second.Session.IsAIOpponent)
	assert.Equal(t, models.QueueStatusMatched, second.Entry.Status)

	refreshedFirst, _ := q.FindByID(first.Entry.ID)
	assert.Equal(t, models.QueueStatusMatched, refreshedFirst.Status)
}

func TestHeartbeat_ChecksOwnership(t *testing.T) {
	q := newMemQueue()
	svc, _ := newTestQueueService(q, newMemSessions(), newMemParticipants())

	result, err := svc.Join(context.Background(), "user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual)
	require.NoError(t, err)

	_, err = svc.Heartbeat("user-b", result.Entry.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	entry, err := svc.Heartbeat("user-a", result.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusWaiting, entry.Status)

	_, err = svc.Heartbeat("user-a", "no-such-entry")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestHeartbeat_MatchedEntryReturnsCurrentState(t *testing.T) {
	q := newMemQueue()
	svc, _ := newTestQueueService(q, newMemSessions(), newMemParticipants())

	result, err := svc.Join(context.Background(), "user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual)
	require.NoError(t, err)

	ok, err := q.MarkMatched(result.Entry.ID, "session-1")
	require.NoError(t, err)
	require.True(t, ok)

	// matched 항목에 대한 heartbeat은 갱신 없이 상태를 알려준다
	entry, err := svc.Heartbeat("user-a", result.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusMatched, entry.Status)
}

func TestCancel_OnlyWaitingEntries(t *testing.T) {
	q := newMemQueue()
	svc, _ := newTestQueueService(q, newMemSessions(), newMemParticipants())

	result, err := svc.Join(context.Background(), "user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual)
	require.NoError(t, err)

	err = svc.Cancel("user-b", result.Entry.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, svc.Cancel("user-a", result.Entry.ID))

	entry, _ := q.FindByID(result.Entry.ID)
	assert.Equal(t, models.QueueStatusCancelled, entry.Status)

	// 이미 취소된 항목은 다시 취소할 수 없다
	err = svc.Cancel("user-a", result.Entry.ID)
	assert.ErrorIs(t, err, ErrEntryNotWaiting)
}

func TestCancel_AfterMatchConflicts(t *testing.T) {
	q := newMemQueue()
	svc, _ := newTestQueueService(q, newMemSessions(), newMemParticipants())

	result, err := svc.Join(context.Background(), "user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual)
	require.NoError(t, err)

	ok, err := q.MarkMatched(result.Entry.ID, "session-1")
	require.NoError(t, err)
	require.True(t, ok)

	err = svc.Cancel("user-a", result.Entry.ID)
	assert.ErrorIs(t, err, ErrEntryNotWaiting)
}

func TestStatus_ReturnsOwnEntryOnly(t *testing.T) {
	svc, _ := newTestQueueService(newMemQueue(), newMemSessions(), newMemParticipants())

	result, err := svc.Join(context.Background(), "user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual)
	require.NoError(t, err)

	entry, err := svc.Status("user-a", result.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Entry.ID, entry.ID)

	_, err = svc.Status("user-b", result.Entry.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Status("user-a", "no-such-entry")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
