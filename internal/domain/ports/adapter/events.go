package adapter

import "lms-ai-backend/internal/domain/model"

// EventPublisher fans a result event out to the user's live subscriptions on
// a session topic. Delivery is best-effort and at-most-once: without a live
// subscriber the event is dropped, never queued. Events published for the
// same topic are delivered in publish order.
type EventPublisher interface {
	Publish(userID int64, sessionID string, event model.ResultEvent)
}
