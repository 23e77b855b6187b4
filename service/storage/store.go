package storage

import (
	"context"
	"time"
)

// MessageRecord is the durable row shape of one chat message. Field names
// match the external store's columns.
type MessageRecord struct {
	MessageID      string    `bson:"message_id" json:"message_id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SenderType     string    `bson:"sender_type" json:"sender_type"`
	SenderID       string    `bson:"sender_id,omitempty" json:"sender_id,omitempty"`
	SenderName     string    `bson:"sender_name" json:"sender_name"`
	Message        string    `bson:"message" json:"message"`
	MessageType    string    `bson:"message_type" json:"message_type"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// MessageStore is the durable backend behind the persistence bridge.
type MessageStore interface {
	Save(ctx context.Context, rec *MessageRecord) error
	Ping(ctx context.Context) error
}
