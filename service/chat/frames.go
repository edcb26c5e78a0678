package chat

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"ChatWave/tools/decode"
	"ChatWave/tools/errs"
)

// Client -> server frame types.
const (
	FrameAuth          = "auth"
	FrameJoin          = "join"
	FrameLeave         = "leave"
	FrameMessageSend   = "message:send"
	FrameMessageEdit   = "message:edit"
	FrameMessageDelete = "message:delete"
	FrameTypingStart   = "typing:start"
	FrameTypingStop    = "typing:stop"
)

// Server -> client event types.
const (
	EventConnected     = "connected"
	EventMessageNew    = "message:new"
	EventMessageEdit   = "message:edit"
	EventMessageDelete = "message:delete"
	EventTyping        = "typing:user"
	EventPresence      = "presence:update"
	EventError         = "error"
)

// Frame is the JSON envelope for both directions: {"type": ..., "data": ...}.
type Frame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal frame")
	}
	if f.Type == "" {
		return nil, errs.ErrArgs.WrapMsg("frame missing type")
	}
	return f, nil
}

// ---- inbound payloads ----

type AuthPayload struct {
	Token string `json:"token"`
}

type JoinPayload struct {
	ConversationID string `json:"conversationId"`
}

type SendPayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
}

type EditPayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

type DeletePayload struct {
	MessageID string `json:"messageId"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
}

func payloadOf[T any](f *Frame) (*T, error) {
	out, err := decode.Map[T](f.Data)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("bad payload", "type", f.Type)
	}
	return out, nil
}

// ---- outbound events ----

type connectedEvent struct {
	ConnID     string   `json:"connId"`
	User       Identity `json:"user"`
	ServerTime int64    `json:"serverTime"`
}

type typingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type presenceEvent struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type errorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func marshalEvent(typ string, data any) []byte {
	b, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: typ, Data: data})
	if err != nil {
		// events are built from our own structs; this cannot fail at runtime
		return nil
	}
	return b
}

func buildConnected(sess *Session) []byte {
	return marshalEvent(EventConnected, connectedEvent{
		ConnID:     sess.ConnID,
		User:       sess.Identity(),
		ServerTime: time.Now().UnixMilli(),
	})
}

func buildMessageEvent(typ string, m *Message) []byte {
	return marshalEvent(typ, m)
}

func buildTyping(conversationID, userID string, isTyping bool) []byte {
	return marshalEvent(EventTyping, typingEvent{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	})
}

func buildPresence(userID string, online bool) []byte {
	return marshalEvent(EventPresence, presenceEvent{UserID: userID, IsOnline: online})
}

func buildError(err error) []byte {
	code := errs.Code(err)
	msg := "internal error"
	var ce *errs.CodeError
	if stderrors.As(err, &ce) {
		msg = ce.Msg
	}
	return marshalEvent(EventError, errorEvent{Code: code, Message: msg})
}
