package entity

type MessageType string

const (
	MessageLineupUpdate       MessageType = "LINEUP_UPDATE"
	MessageEventUpdate        MessageType = "EVENT_UPDATE"
	MessageNewNotification    MessageType = "NEW_NOTIFICATION"
	MessageNotificationDelete MessageType = "NOTIFICATION_DELETE"
)

type LineupAction string

const (
	ActionCreate  LineupAction = "CREATE"
	ActionDelete  LineupAction = "DELETE"
	ActionReorder LineupAction = "REORDER"
)

// Envelope is the JSON frame pushed to live clients.
type Envelope struct {
	Type            MessageType  `json:"type"`
	EventID         *int64       `json:"eventId,omitempty"`
	Action          LineupAction `json:"action,omitempty"`
	Data            interface{}  `json:"data"`
	UserID          *int64       `json:"userId,omitempty"`
	NotificationIDs []int64      `json:"notificationIds,omitempty"`
}

func LineupEnvelope(eventID int64, action LineupAction, data interface{}) Envelope {
	return Envelope{Type: MessageLineupUpdate, EventID: &eventID, Action: action, Data: data}
}

func EventEnvelope(eventID int64, data interface{}) Envelope {
	return Envelope{Type: MessageEventUpdate, EventID: &eventID, Data: data}
}

func NotificationEnvelope(userID int64, data interface{}) Envelope {
	return Envelope{Type: MessageNewNotification, UserID: &userID, Data: data}
}

func NotificationDeleteEnvelope(userID, eventID int64, ids []int64) Envelope {
	return Envelope{
		Type:            MessageNotificationDelete,
		EventID:         &eventID,
		UserID:          &userID,
		NotificationIDs: ids,
		Data:            map[string]interface{}{"event_id": eventID, "count": len(ids)},
	}
}
