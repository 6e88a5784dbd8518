package handler

import "github.com/freeeve/colony-agent/internal/bot"

// topicFor maps an agent event type to its viewer topic.
func topicFor(eventType string) string {
	if eventType == bot.EventTurn {
		return TopicTurn
	}
	return TopicStatus
}

// BroadcastEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastEvent(eventType string, data any) {
	topic := topicFor(eventType)
	h.BroadcastToTopic(topic, WSEvent{
		Type:  eventType,
		Topic: topic,
		Data:  data,
	})
}
