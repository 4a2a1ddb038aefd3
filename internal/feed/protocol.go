package feed

import (
	"github.com/codetrek/codetrek/internal/session"
	"github.com/codetrek/codetrek/internal/transcript"
)

// MessageType identifies an envelope payload.
type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgAppend   MessageType = "append"
	MsgReset    MessageType = "reset"
	MsgQuestion MessageType = "question"
	MsgLevel    MessageType = "level"
)

// Envelope is one WebSocket frame. Seq increases by one per broadcast; a
// snapshot carries the Seq of the last broadcast before it.
type Envelope struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// SnapshotPayload is the full session state sent on connect.
type SnapshotPayload struct {
	Session session.Snapshot `json:"session"`
}

// ChangePayload describes one store mutation. Length is the transcript
// length after the change, so a client holding a snapshot can skip appends
// it already has.
type ChangePayload struct {
	Message  *transcript.Message `json:"message,omitempty"`
	Question *session.Question   `json:"question,omitempty"`
	Level    session.Level       `json:"level"`
	Topic    string              `json:"topic"`
	Length   int                 `json:"length"`
	Epoch    uint64              `json:"epoch"`
}

func messageType(kind session.ChangeKind) MessageType {
	switch kind {
	case session.ChangeReset:
		return MsgReset
	case session.ChangeQuestion:
		return MsgQuestion
	case session.ChangeLevel:
		return MsgLevel
	default:
		return MsgAppend
	}
}
