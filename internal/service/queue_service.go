package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/debate-arena/debate-arena-backend/internal/models"
	"github.com/debate-arena/debate-arena-backend/pkg/logger"
)

type queueStore interface {
	Enqueue(participantID, format string, mode models.SessionMode, preference models.OpponentPreference, pause models.PauseMode, rating int) (*models.QueueEntry, error)
	Heartbeat(entryID string) (bool, error)
	Cancel(entryID string) (bool, error)
	FindByID(entryID string) (*models.QueueEntry, error)
}

type ratingReader interface {
	GetOrCreate(identityID, format string) (*models.RatingRecord, error)
}

// matcher 큐 서비스가 쓰는 Matcher 연산
type matcher interface {
	TryMatch(ctx context.Context, entryID string) (*models.Session, error)
	MatchWithAI(ctx context.Context, entryID string) (*models.Session, error)
}

// JoinResult enqueue 직후의 상태. 매칭이 즉시 성사되면 Session이
// 채워진다.
type JoinResult struct {
	Entry   *models.QueueEntry `json:"entry"`
	Session *models.Session    `json:"session,omitempty"`
}

type QueueService struct {
	queueStore  queueStore
	ratingStore ratingReader
	matcher     matcher

	aiFallbackWait time.Duration

	// entry별 AI 폴백 타이머. 타이머가 져도 (이미 matched) CAS가
	// 막아주므로 타이머 정리는 최적화일 뿐이다.
	timers   map[string]*time.Timer
	timersMu sync.Mutex
}

func NewQueueService(
	queueStore queueStore,
	ratingStore ratingReader,
	matcher matcher,
	aiFallbackWait time.Duration,
) *QueueService {
	return &QueueService{
		queueStore:     queueStore,
		ratingStore:    ratingStore,
		matcher:        matcher,
		aiFallbackWait: aiFallbackWait,
		timers:         make(map[string]*time.Timer),
	}
}

// Join 대기열 참가. 기존 waiting 항목은 대체된다.
func (s *QueueService) Join(
	ctx context.Context,
	participantID, format string,
	mode models.SessionMode,
	preference models.OpponentPreference,
	pause models.PauseMode,
) (*JoinResult, error) {
	if _, ok := models.FormatByName(format); !ok {
		return nil, ErrInvalidFormat
	}
	switch mode {
	case models.ModeRanked, models.ModeCasual:
	default:
		return nil, ErrInvalidMode
	}
	switch preference {
	case models.PreferHumanOnly, models.PreferAIOnly, models.PreferHumanThenAI:
	default:
		return nil, ErrInvalidPreference
	}
	switch pause {
	case "":
		pause = models.PauseManual
	case models.PauseManual, models.PauseAuto, models.PauseBoth:
	default:
		return nil, ErrInvalidPauseMode
	}

	record, err := s.ratingStore.GetOrCreate(participantID, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load rating: %w", err)
	}

	entry, err := s.queueStore.Enqueue(participantID, format, mode, preference, pause, record.Rating)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}

	result := &JoinResult{Entry: entry}

	switch preference {
	case models.PreferAIOnly:
		// 폴백 대기 시간 0: 즉시 AI 세션 생성
		session, err := s.matcher.MatchWithAI(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		result.Session = session

	case models.PreferHumanThenAI:
		s.scheduleFallback(entry.ID)
		fallthrough

	case models.PreferHumanOnly:
		session, err := s.matcher.TryMatch(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		result.Session = session
	}

	if result.Session != nil {
		s.cancelFallback(entry.ID)
		if refreshed, err := s.queueStore.FindByID(entry.ID); err == nil && refreshed != nil {
			result.Entry = refreshed
		}
	}

	return result, nil
}

// Heartbeat 생존 신고. 본인 항목이 아니면 거부한다.
func (s *QueueService) Heartbeat(participantID, entryID string) (*models.QueueEntry, error) {
	entry, err := s.queueStore.FindByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	if entry.ParticipantID != participantID {
		return nil, ErrUnauthorized
	}

	// waiting이 아니면 갱신 없이 현재 상태만 돌려준다 (클라이언트는
	// matched/expired를 보고 다음 행동을 정한다)
	if entry.Status != models.QueueStatusWaiting {
		return entry, nil
	}

	if _, err := s.queueStore.Heartbeat(entryID); err != nil {
		return nil, err
	}

	return s.queueStore.FindByID(entryID)
}

// Cancel waiting 항목 취소. 이미 matched면 ErrEntryNotWaiting.
func (s *QueueService) Cancel(participantID, entryID string) error {
	entry, err := s.queueStore.FindByID(entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrEntryNotFound
	}
	if entry.ParticipantID != participantID {
		return ErrUnauthorized
	}

	ok, err := s.queueStore.Cancel(entryID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEntryNotWaiting
	}

	s.cancelFallback(entryID)
	return nil
}

// Status 대기열 항목 조회 (폴링용)
func (s *QueueService) Status(participantID, entryID string) (*models.QueueEntry, error) {
	entry, err := s.queueStore.FindByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	if entry.ParticipantID != participantID {
		return nil, ErrUnauthorized
	}

	return entry, nil
}

func (s *QueueService) scheduleFallback(entryID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	s.timers[entryID] = time.AfterFunc(s.aiFallbackWait, func() {
		s.timersMu.Lock()
		delete(s.timers, entryID)
		s.timersMu.Unlock()

		// 아직 waiting일 때만 성공한다. Matcher가 먼저 이겼으면 no-op.
		if _, err := s.matcher.MatchWithAI(context.Background(), entryID); err != nil {
			logger.Error("AI fallback timer failed", "entryId", entryID, "error", err)
		}
	})
}

func (s *QueueService) cancelFallback(entryID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if timer, ok := s.timers[entryID]; ok {
		timer.Stop()
		delete(s.timers, entryID)
	}
}
