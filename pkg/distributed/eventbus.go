package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event 타입 상수. change feed로 흘러가는 모든 변경이 여기 속한다.
const (
	EventQueueMatched  = "queue.matched"
	EventQueueExpired  = "queue.expired"
	EventSessionPhase  = "session.phase"
	EventSessionStatus = "session.status"
	EventSpeechAdded   = "session.speech"
)

// Event 세션/큐 상태 변경 이벤트
type Event struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	EntryID   string                 `json:"entry_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Origin    string                 `json:"origin"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventBus Redis Pub/Sub 기반 change feed. DB에 커밋된 상태 변경을
// 모든 인스턴스에 중계해서 각자의 websocket 클라이언트로 내보낸다.
// 이벤트는 알림일 뿐이며 상태의 원본은 항상 DB다.
type EventBus struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string

	channel   string
	stopChan  chan struct{}
	cancelSub context.CancelFunc
}

// NewEventBus change feed 생성
func NewEventBus(client *redis.Client, logger *zap.Logger) *EventBus {
	return &EventBus{
		client:     client,
		logger:     logger,
		instanceID: uuid.New().String(),
		channel:    "debate:events",
		stopChan:   make(chan struct{}),
	}
}

// InstanceID 이 인스턴스의 발행 식별자. 수신 측이 자기 자신이 발행한
// 이벤트를 거를 때 사용한다.
func (b *EventBus) InstanceID() string {
	return b.instanceID
}

// Start 이벤트 수신 시작. handler는 수신 고루틴에서 호출된다.
func (b *EventBus) Start(ctx context.Context, handler func(event Event)) error {
	subCtx, cancel := context.WithCancel(ctx)
	b.cancelSub = cancel

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	b.logger.Info("Event bus started",
		zap.String("instance_id", b.instanceID),
		zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				continue
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}

			handler(event)

		case <-b.stopChan:
			b.logger.Info("Event bus stopped")
			return nil

		case <-subCtx.Done():
			return subCtx.Err()
		}
	}
}

// Stop 이벤트 수신 중지
func (b *EventBus) Stop() {
	close(b.stopChan)
	if b.cancelSub != nil {
		b.cancelSub()
	}
}

// Publish 이벤트 발행. DB 커밋 이후에만 호출해야 한다.
func (b *EventBus) Publish(ctx context.Context, event Event) error {
	event.Origin = b.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// PublishPhaseChange phase 전이 알림
func (b *EventBus) PublishPhaseChange(ctx context.Context, sessionID, phase string, remainingSeconds int) error {
	return b.Publish(ctx, Event{
		Type:      EventSessionPhase,
		SessionID: sessionID,
		Data: map[string]interface{}{
			"phase":             phase,
			"remaining_seconds": remainingSeconds,
		},
	})
}

// PublishSessionStatus 세션 상태 전이 알림
func (b *EventBus) PublishSessionStatus(ctx context.Context, sessionID, status, reason string) error {
	return b.Publish(ctx, Event{
		Type:      EventSessionStatus,
		SessionID: sessionID,
		Data: map[string]interface{}{
			"status": status,
			"reason": reason,
		},
	})
}

// PublishQueueMatched 큐 항목 매칭 알림
func (b *EventBus) PublishQueueMatched(ctx context.Context, entryID, sessionID string) error {
	return b.Publish(ctx, Event{
		Type:      EventQueueMatched,
		SessionID: sessionID,
		EntryID:   entryID,
	})
}

// PublishQueueExpired 큐 항목 만료 알림
func (b *EventBus) PublishQueueExpired(ctx context.Context, entryID string) error {
	return b.Publish(ctx, Event{
		Type:    EventQueueExpired,
		EntryID: entryID,
	})
}
