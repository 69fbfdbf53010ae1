package service

import "context"

// Notifier 이 인스턴스에 붙어 있는 websocket 클라이언트로의 푸시.
// websocket.Hub가 구현한다.
type Notifier interface {
	SendMatchFound(userID, entryID, sessionID string)
	SendPhaseChange(sessionID, phase string, remainingSeconds int)
	SendSessionStatus(sessionID, status, reason string)
}

// ChangeFeed 인스턴스 간 change feed. distributed.EventBus가 구현한다.
// 전달은 at-least-once이며 수신 측은 중복에 멱등해야 한다.
type ChangeFeed interface {
	PublishQueueMatched(ctx context.Context, entryID, sessionID string) error
	PublishQueueExpired(ctx context.Context, entryID string) error
	PublishPhaseChange(ctx context.Context, sessionID, phase string, remainingSeconds int) error
	PublishSessionStatus(ctx context.Context, sessionID, status, reason string) error
}
