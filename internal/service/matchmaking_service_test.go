package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debate-arena/debate-arena-backend/internal/models"
)

func newTestMatcher(q *memQueue, s *memSessions, p *memParticipants, n *memNotifier) *MatchmakingService {
	return NewMatchmakingService(
		q, s, p, n, nil, nil,
		time.Hour, // 스윕은 테스트에서 직접 호출
		100, 500,
		30*time.Second,
		15*time.Second,
	)
}

func TestTryMatch_PairsCompatibleEntries(t *testing.T) {
	q := newMemQueue()
	sessions := newMemSessions()
	participants := newMemParticipants()
	notifier := &memNotifier{}
	m := newTestMatcher(q, sessions, participants, notifier)
	ctx := context.Background()

	a, err := q.Enqueue("user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1200)
	require.NoError(t, err)
	b, err := q.Enqueue("user-b", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1250)
	require.NoError(t, err)

	session, err := m.TryMatch(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, models.SessionStatusReserved, session.Status)
	assert.False(t, session.IsAIOpponent)
	assert.NotEmpty(t, session.Topic)

	// 양쪽 모두 같은 세션으로 matched
	for _, id := range []string{a.ID, b.ID} {
		entry, err := q.FindByID(id)
		require.NoError(t, err)
		assert.Equal(t, models.QueueStatusMatched, entry.Status)
		require.NotNil(t, entry.MatchedSessionID)
		assert.Equal(t, session.ID, *entry.MatchedSessionID)
	}

	// 참가자는 정확히 2명, 서로 다른 side, proposition이 1번 발언
	list, err := participants.ListBySession(session.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.NotEqual(t, list[0].Side, list[1].Side)
	for _, participant := range list {
		if participant.Side == models.SideProposition {
			assert.Equal(t, 1, participant.SpeakingOrder)
		} else {
			assert.Equal(t, 2, participant.SpeakingOrder)
		}
	}

	assert.Len(t, notifier.matches(), 2)
}

func TestTryMatch_NoOpponentLeavesEntryWaiting(t *testing.T) {
	q := newMemQueue()
	sessions := newMemSessions()
	m := newTestMatcher(q, sessions, newMemParticipants(), &memNotifier{})

	entry, err := q.Enqueue("user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1200)
	require.NoError(t, err)

	session, err := m.TryMatch(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Nil(t, session)

	refreshed, _ := q.FindByID(entry.ID)
	assert.Equal(t, models.QueueStatusWaiting, refreshed.Status)
	assert.Equal(t, 0, sessions.count())
}

func TestTryMatch_SkipsAIOnlyAndOutOfBandOpponents(t *testing.T) {
	q := newMemQueue()
	m := newTestMatcher(q, newMemSessions(), newMemParticipants(), &memNotifier{})
	ctx := context.Background()

	entry, err := q.Enqueue("user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1200)
	require.NoError(t, err)

	// ai_only 항목은 사람 매칭 대상이 아니다
	_, err = q.Enqueue("user-b", models.FormatStandard, models.ModeRanked, models.PreferAIOnly, models.PauseManual, 1200)
	require.NoError(t, err)

	// 초기 밴드 (±100) 바깥
	_, err = q.Enqueue("user-c", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1500)
	require.NoError(t, err)

	session, err := m.TryMatch(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestTryMatch_IgnoresDifferentFormatAndMode(t *testing.T) {
	q := newMemQueue()
	m := newTestMatcher(q, newMemSessions(), newMemParticipants(), &memNotifier{})

	entry, err := q.Enqueue("user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1200)
	require.NoError(t, err)
	_, err = q.Enqueue("user-b", models.FormatBlitz, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1200)
	require.NoError(t, err)
	_, err = q.Enqueue("user-c", models.FormatStandard, models.ModeCasual, models.PreferHumanOnly, models.PauseManual, 1200)
	require.NoError(t, err)

	session, err := m.TryMatch(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestTryMatch_ConcurrentNeverDoubleMatches(t *testing.T) {
	ctx := context.Background()

	// 동시 매칭은 둘 다 실패하고 물러날 수는 있어도 (다음 스윕이
	// 재시도) 세션이 2개 생기거나 반쪽만 matched로 남으면 안 된다.
	for i := 0; i < 50; i++ {
		q := newMemQueue()
		sessions := newMemSessions()
		m := newTestMatcher(q, sessions, newMemParticipants(), &memNotifier{})

		a, err := q.Enqueue("user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1200)
		require.NoError(t, err)
		b, err := q.Enqueue("user-b", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1210)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, id := range []string{a.ID, b.ID} {
			wg.Add(1)
			go func(entryID string) {
				defer wg.Done()
				_, err := m.TryMatch(ctx, entryID)
				assert.NoError(t, err)
			}(id)
		}
		wg.Wait()

		entryA, _ := q.FindByID(a.ID)
		entryB, _ := q.FindByID(b.ID)

		switch sessions.count() {
		case 1:
			require.Equal(t, models.QueueStatusMatched, entryA.Status)
			require.Equal(t, models.QueueStatusMatched, entryB.Status)
			require.Equal(t, *entryA.MatchedSessionID, *entryB.MatchedSessionID)
		case 0:
			// 상호 충돌로 둘 다 물러난 경우: 양쪽 모두 waiting으로 복구
			require.Equal(t, models.QueueStatusWaiting, entryA.Status)
			require.Equal(t, models.QueueStatusWaiting, entryB.Status)
		default:
			t.Fatalf("iteration %d: %d sessions survived", i, sessions.count())
		}
	}
}

func TestMatchWithAI_CreatesSessionWithAIStandIn(t *testing.T) {
	q := newMemQueue()
	sessions := newMemSessions()
	participants := newMemParticipants()
	notifier := &memNotifier{}
	m := newTestMatcher(q, sessions, participants, notifier)

	entry, err := q.Enqueue("user-a", models.FormatBlitz, models.ModeCasual, models.PreferAIOnly, models.PauseManual, 1000)
	require.NoError(t, err)

	session, err := m.MatchWithAI(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.IsAIOpponent)

	list, err := participants.ListBySession(session.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	var human, ai *models.Participant
	for i := range list {
		if list[i].IsAI {
			ai = &list[i]
		} else {
			human = &list[i]
		}
	}
	require.NotNil(t, human)
	require.NotNil(t, ai)
	assert.Nil(t, ai.IdentityID)
	require.NotNil(t, human.IdentityID)
	assert.Equal(t, "user-a", *human.IdentityID)
	assert.Equal(t, human.Side.Opposite(), ai.Side)

	refreshed, _ := q.FindByID(entry.ID)
	assert.Equal(t, models.QueueStatusMatched, refreshed.Status)
}

func TestMatchWithAI_NoOpWhenAlreadyMatched(t *testing.T) {
	q := newMemQueue()
	sessions := newMemSessions()
	m := newTestMatcher(q, sessions, newMemParticipants(), &memNotifier{})

	entry, err := q.Enqueue("user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanThenAI, models.PauseManual, 1200)
	require.NoError(t, err)

	ok, err := q.MarkMatched(entry.ID, "existing-session")
	require.NoError(t, err)
	require.True(t, ok)

	before := sessions.count()
	session, err := m.MatchWithAI(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, before, sessions.count(), "reserved session must be cleaned up")
}

func TestBandFor_WidensWithWaitTime(t *testing.T) {
	m := newTestMatcher(newMemQueue(), newMemSessions(), newMemParticipants(), &memNotifier{})

	entry := &models.QueueEntry{JoinedAt: time.Now()}
	assert.Equal(t, 100, m.bandFor(entry))

	entry.JoinedAt = time.Now().Add(-35 * time.Second)
	assert.Equal(t, 200, m.bandFor(entry))

	entry.JoinedAt = time.Now().Add(-65 * time.Second)
	assert.Equal(t, 300, m.bandFor(entry))

	// 상한에서 멈춘다
	entry.JoinedAt = time.Now().Add(-10 * time.Minute)
	assert.Equal(t, 500, m.bandFor(entry))
}

func TestRunSweep_ExpiresStaleAndRescuesFallback(t *testing.T) {
	q := newMemQueue()
	sessions := newMemSessions()
	participants := newMemParticipants()
	m := newTestMatcher(q, sessions, participants, &memNotifier{})

	// heartbeat이 끊긴 항목
	stale, err := q.Enqueue("user-stale", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1200)
	require.NoError(t, err)
	q.mu.Lock()
	q.entries[stale.ID].LastHeartbeatAt = time.Now().Add(-time.Minute)
	q.mu.Unlock()

	// AI 폴백 대기 시간이 지난 항목 (타이머를 놓친 경우)
	overdue, err := q.Enqueue("user-overdue", models.FormatStandard, models.ModeRanked, models.PreferHumanThenAI, models.PauseManual, 1200)
	require.NoError(t, err)
	q.mu.Lock()
	q.entries[overdue.ID].JoinedAt = time.Now().Add(-time.Minute)
	q.mu.Unlock()

	m.runSweep()

	staleEntry, _ := q.FindByID(stale.ID)
	assert.Equal(t, models.QueueStatusExpired, staleEntry.Status)

	overdueEntry, _ := q.FindByID(overdue.ID)
	assert.Equal(t, models.QueueStatusMatched, overdueEntry.Status)

	require.NotNil(t, overdueEntry.MatchedSessionID)
	session, _ := sessions.FindByID(*overdueEntry.MatchedSessionID)
	require.NotNil(t, session)
	assert.True(t, session.IsAIOpponent)
}

func TestTryMatch_PauseModeNeedsAgreement(t *testing.T) {
	ctx := context.Background()

	t.Run("matching settings carry over", func(t *testing.T) {
		q := newMemQueue()
		sessions := newMemSessions()
		m := newTestMatcher(q, sessions, newMemParticipants(), &memNotifier{})

		a, err := q.Enqueue("user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseBoth, 1200)
		require.NoError(t, err)
		_, err = q.Enqueue("user-b", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseBoth, 1250)
		require.NoError(t, err)

		session, err := m.TryMatch(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, models.PauseBoth, session.PauseMode)
	})

	t.Run("mismatch falls back to manual", func(t *testing.T) {
		q := newMemQueue()
		sessions := newMemSessions()
		m := newTestMatcher(q, sessions, newMemParticipants(), &memNotifier{})

		a, err := q.Enqueue("user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseAuto, 1200)
		require.NoError(t, err)
		_, err = q.Enqueue("user-b", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseBoth, 1250)
		require.NoError(t, err)

		session, err := m.TryMatch(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, models.PauseManual, session.PauseMode)
	})
}

func TestMatchWithAI_UsesEntryPauseMode(t *testing.T) {
	q := newMemQueue()
	sessions := newMemSessions()
	m := newTestMatcher(q, sessions, newMemParticipants(), &memNotifier{})

	entry, err := q.Enqueue("user-a", models.FormatBlitz, models.ModeCasual, models.PreferAIOnly, models.PauseAuto, 1000)
	require.NoError(t, err)

	session, err := m.MatchWithAI(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.PauseAuto, session.PauseMode)
}

func TestTryMatch_ParticipantFailureRevertsBothEntries(t *testing.T) {
	q := newMemQueue()
	sessions := newMemSessions()
	participants := newMemParticipants()
	participants.createErr = errors.New("participant insert failed")
	m := newTestMatcher(q, sessions, participants, &memNotifier{})

	a, err := q.Enqueue("user-a", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1200)
	require.NoError(t, err)
	b, err := q.Enqueue("user-b", models.FormatStandard, models.ModeRanked, models.PreferHumanOnly, models.PauseManual, 1250)
	require.NoError(t, err)

	_, err = m.TryMatch(context.Background(), a.ID)
	require.Error(t, err)

	// 참가자 없는 세션에 묶인 채 남지 않고 둘 다 재매칭 가능해야 한다
	for _, id := range []string{a.ID, b.ID} {
		entry, ferr := q.FindByID(id)
		require.NoError(t, ferr)
		assert.Equal(t, models.QueueStatusWaiting, entry.Status)
		assert.Nil(t, entry.MatchedSessionID)
	}
	assert.Equal(t, 0, sessions.count())
}
