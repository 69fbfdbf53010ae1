package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/pkg/distributed"
	"github.com/debate-arena/debate-arena-backend/pkg/logger"
)

const matchSweepLockKey = "matchmaking:sweep:lock"

// matchQueueStore Matcher가 필요로 하는 큐 연산. CAS 의미론
// (MarkMatched는 waiting일 때만 성공)은 구현체가 보장해야 한다.
type matchQueueStore interface {
	FindByID(entryID string) (*models.QueueEntry, error)
	FindOpponent(entryID, format string, mode models.SessionMode, rating, ratingRange int, livenessWindow time.Duration) (*models.QueueEntry, error)
	MarkMatched(entryID, sessionID string) (bool, error)
	RevertToWaiting(entryID string) error
	ListWaiting(format string, mode models.SessionMode, livenessWindow time.Duration) ([]models.QueueEntry, error)
	ExpireStale(livenessWindow time.Duration) ([]string, error)
}

type matchSessionStore interface {
	Create(format string, mode models.SessionMode, isAIOpponent bool, pauseMode models.PauseMode, topic string) (*models.Session, error)
	DeleteReserved(sessionID string) error
}

type matchParticipantStore interface {
	Create(sessionID string, identityID *string, isAI bool, side models.Side, speakingOrder int) (*models.Participant, error)
}

// 매칭 시 무작위로 배정되는 논제 풀
var topicPool = []string{
	"This house would ban targeted political advertising",
	"This house believes remote work does more harm than good",
	"This house would make voting compulsory",
	"This house believes social media platforms should verify all users",
	"This house would replace university entrance exams with lotteries",
	"This house believes space exploration is a waste of public money",
	"This house would give every citizen a universal basic income",
	"This house believes professional sports leagues should abolish salary caps",
}

type MatchmakingService struct {
	queueStore       matchQueueStore
	sessionStore     matchSessionStore
	participantStore matchParticipantStore
	notifier         Notifier
	feed             ChangeFeed
	lockManager      *distributed.RedisLockManager
	instanceID       string

	interval       time.Duration
	ratingRange    int
	maxRatingRange int
	aiFallbackWait time.Duration
	livenessWindow time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewMatchmakingService(
	queueStore matchQueueStore,
	sessionStore matchSessionStore,
	participantStore matchParticipantStore,
	notifier Notifier,
	feed ChangeFeed,
	lockManager *distributed.RedisLockManager,
	interval time.Duration,
	ratingRange, maxRatingRange int,
	aiFallbackWait time.Duration,
	livenessWindow time.Duration,
) *MatchmakingService {
	return &MatchmakingService{
		queueStore:       queueStore,
		sessionStore:     sessionStore,
		participantStore: participantStore,
		notifier:         notifier,
		feed:             feed,
		lockManager:      lockManager,
		instanceID:       uuid.New().String(),
		interval:         interval,
		ratingRange:      ratingRange,
		maxRatingRange:   maxRatingRange,
		aiFallbackWait:   aiFallbackWait,
		livenessWindow:   livenessWindow,
		stopChan:         make(chan struct{}),
	}
}

// Start 주기적 스윕 시작
func (s *MatchmakingService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	logger.Info("Starting matchmaking sweep", "interval", s.interval)

	s.wg.Add(1)
	go s.sweepLoop()
}

// Stop 스윕 중지
func (s *MatchmakingService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	logger.Info("Matchmaking sweep stopped")
}

func (s *MatchmakingService) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runSweep()

	for {
		select {
		case <-ticker.C:
			s.runSweep()
		case <-s.stopChan:
			return
		}
	}
}

// runSweep 전체 스윕 1회. 여러 인스턴스가 떠 있어도 분산 락으로 한
// 번에 하나만 돈다. 락 없이도 CAS 덕에 정합성은 깨지지 않고 중복
// 작업만 늘어난다.
func (s *MatchmakingService) runSweep() {
	ctx := context.Background()

	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLock(ctx, matchSweepLockKey, s.instanceID, s.interval*2)
		if err == distributed.ErrLockNotAcquired {
			return
		}
		if err != nil {
			logger.Error("Failed to acquire sweep lock", "error", err)
			return
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				logger.Error("Failed to release sweep lock", "error", err)
			}
		}()
	}

	s.expireStale(ctx)

	for _, format := range []string{models.FormatBlitz, models.FormatStandard, models.FormatExtended} {
		for _, mode := range []models.SessionMode{models.ModeRanked, models.ModeCasual} {
			s.sweepBucket(ctx, format, mode)
		}
	}
}

func (s *MatchmakingService) expireStale(ctx context.Context) {
	expired, err := s.queueStore.ExpireStale(s.livenessWindow)
	if err != nil {
		logger.Error("Failed to expire stale queue entries", "error", err)
		return
	}

	for _, entryID := range expired {
		logger.Info("Queue entry expired", "entryId", entryID)
		if s.feed != nil {
			if err := s.feed.PublishQueueExpired(ctx, entryID); err != nil {
				logger.Error("Failed to publish queue expiry", "error", err)
			}
		}
	}
}

func (s *MatchmakingService) sweepBucket(ctx context.Context, format string, mode models.SessionMode) {
	waiting, err := s.queueStore.ListWaiting(format, mode, s.livenessWindow)
	if err != nil {
		logger.Error("Failed to list waiting entries", "format", format, "error", err)
		return
	}

	matched := make(map[string]bool)
	for _, entry := range waiting {
		if matched[entry.ID] {
			continue
		}

		// 타이머를 놓친 AI 폴백 항목 수습 (프로세스 재시작 등)
		if s.fallbackDue(&entry) {
			if session, err := s.MatchWithAI(ctx, entry.ID); err != nil {
				logger.Error("AI fallback failed", "entryId", entry.ID, "error", err)
			} else if session != nil {
				matched[entry.ID] = true
			}
			continue
		}

		session, opponentID, err := s.tryMatchEntry(ctx, &entry)
		if err != nil {
			logger.Error("Matchmaking failed", "entryId", entry.ID, "error", err)
			continue
		}
		if session != nil {
			matched[entry.ID] = true
			matched[opponentID] = true
		}
	}
}

func (s *MatchmakingService) fallbackDue(entry *models.QueueEntry) bool {
	switch entry.OpponentPreference {
	case models.PreferAIOnly:
		return true
	case models.PreferHumanThenAI:
		return time.Since(entry.JoinedAt) >= s.aiFallbackWait
	}
	return false
}

// TryMatch 항목 하나에 대해 즉시 매칭 시도. 상대가 없으면 (nil, nil).
// enqueue 직후와 스윕 양쪽에서 호출되며 동시 호출에도 안전하다.
func (s *MatchmakingService) TryMatch(ctx context.Context, entryID string) (*models.Session, error) {
	entry, err := s.queueStore.FindByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Status != models.QueueStatusWaiting {
		return nil, nil
	}
	if entry.OpponentPreference == models.PreferAIOnly {
		return nil, nil
	}

	session, _, err := s.tryMatchEntry(ctx, entry)
	return session, err
}

func (s *MatchmakingService) tryMatchEntry(ctx context.Context, entry *models.QueueEntry) (*models.Session, string, error) {
	opponent, err := s.queueStore.FindOpponent(
		entry.ID,
		entry.Format,
		entry.Mode,
		entry.SkillRating,
		s.bandFor(entry),
		s.livenessWindow,
	)
	if err != nil {
		return nil, "", err
	}
	if opponent == nil {
		return nil, "", nil
	}

	session, err := s.sessionStore.Create(entry.Format, entry.Mode, false, pairPauseMode(entry.PauseMode, opponent.PauseMode), pickTopic())
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	// 양쪽 모두 waiting → matched CAS. 어느 한쪽이라도 실패하면 매칭을
	// 포기하고 세션을 지운다. 다음 트리거가 다시 시도한다.
	ok, err := s.queueStore.MarkMatched(entry.ID, session.ID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		_ = s.sessionStore.DeleteReserved(session.ID)
		return nil, "", nil
	}

	ok, err = s.queueStore.MarkMatched(opponent.ID, session.ID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		if err := s.queueStore.RevertToWaiting(entry.ID); err != nil {
			logger.Error("Failed to revert half-claimed entry", "entryId", entry.ID, "error", err)
		}
		_ = s.sessionStore.DeleteReserved(session.ID)
		return nil, "", nil
	}

	// side는 세션마다 무작위 배정, 발언 우선권은 항상 proposition
	sides := [2]models.Side{models.SideProposition, models.SideOpposition}
	if rand.Intn(2) == 1 {
		sides[0], sides[1] = sides[1], sides[0]
	}

	if err := s.createHumanPair(session.ID, entry.ParticipantID, opponent.ParticipantID, sides); err != nil {
		// 참가자 없는 세션에 두 항목을 묶어두면 영영 매칭되지 않는다.
		// 양쪽 모두 waiting으로 되돌리고 세션을 지운다.
		for _, id := range []string{entry.ID, opponent.ID} {
			if rerr := s.queueStore.RevertToWaiting(id); rerr != nil {
				logger.Error("Failed to revert entry after participant failure", "entryId", id, "error", rerr)
			}
		}
		_ = s.sessionStore.DeleteReserved(session.ID)
		return nil, "", err
	}

	logger.Info("Match created",
		"sessionId", session.ID,
		"entryA", entry.ID,
		"entryB", opponent.ID,
		"ratingA", entry.SkillRating,
		"ratingB", opponent.SkillRating)

	s.notifyMatched(ctx, session.ID, entry, opponent)

	return session, opponent.ID, nil
}

// pairPauseMode 두 항목의 전환 일시정지 설정이 일치할 때만 반영한다.
// 다르면 manual로 내려간다.
func pairPauseMode(a, b models.PauseMode) models.PauseMode {
	if a != "" && a == b {
		return a
	}
	return models.PauseManual
}

func entryPauseMode(m models.PauseMode) models.PauseMode {
	if m == "" {
		return models.PauseManual
	}
	return m
}

func (s *MatchmakingService) createHumanPair(sessionID, identityA, identityB string, sides [2]models.Side) error {
	for i, identity := range []string{identityA, identityB} {
		id := identity
		order := speakingOrder(sides[i])
		if _, err := s.participantStore.Create(sessionID, &id, false, sides[i], order); err != nil {
			return fmt.Errorf("failed to create participant: %w", err)
		}
	}
	return nil
}

// MatchWithAI AI 폴백 경로. entry가 아직 waiting일 때만 세션을 만든다.
// Matcher와 같은 CAS를 쓰므로 둘 중 하나만 이긴다.
func (s *MatchmakingService) MatchWithAI(ctx context.Context, entryID string) (*models.Session, error) {
	entry, err := s.queueStore.FindByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Status != models.QueueStatusWaiting {
		return nil, nil
	}

	session, err := s.sessionStore.Create(entry.Format, entry.Mode, true, entryPauseMode(entry.PauseMode), pickTopic())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	ok, err := s.queueStore.MarkMatched(entry.ID, session.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		_ = s.sessionStore.DeleteReserved(session.ID)
		return nil, nil
	}

	humanSide := models.SideProposition
	if rand.Intn(2) == 1 {
		humanSide = models.SideOpposition
	}

	identity := entry.ParticipantID
	if _, err := s.participantStore.Create(session.ID, &identity, false, humanSide, speakingOrder(humanSide)); err != nil {
		return nil, fmt.Errorf("failed to create human participant: %w", err)
	}
	aiSide := humanSide.Opposite()
	if _, err := s.participantStore.Create(session.ID, nil, true, aiSide, speakingOrder(aiSide)); err != nil {
		return nil, fmt.Errorf("failed to create ai participant: %w", err)
	}

	logger.Info("AI fallback session created",
		"sessionId", session.ID,
		"entryId", entry.ID,
		"humanSide", humanSide)

	s.notifyMatched(ctx, session.ID, entry)

	return session, nil
}

func (s *MatchmakingService) notifyMatched(ctx context.Context, sessionID string, entries ...*models.QueueEntry) {
	for _, entry := range entries {
		if s.notifier != nil {
			s.notifier.SendMatchFound(entry.ParticipantID, entry.ID, sessionID)
		}
		if s.feed != nil {
			if err := s.feed.PublishQueueMatched(ctx, entry.ID, sessionID); err != nil {
				logger.Error("Failed to publish match event", "entryId", entry.ID, "error", err)
			}
		}
	}
}

// bandFor 대기 시간에 따라 레이팅 밴드를 넓힌다. 30초마다 기본 밴드
// 만큼 늘어나고 상한에서 멈춘다.
func (s *MatchmakingService) bandFor(entry *models.QueueEntry) int {
	steps := int(time.Since(entry.JoinedAt) / (30 * time.Second))
	band := s.ratingRange * (1 + steps)
	if band > s.maxRatingRange {
		return s.maxRatingRange
	}
	return band
}

func speakingOrder(side models.Side) int {
	if side == models.SideProposition {
		return 1
	}
	return 2
}

func pickTopic() string {
	return topicPool[rand.Intn(len(topicPool))]
}
