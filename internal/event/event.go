package event

// Type identifies an inbound chat event.
type Type int

const (
	TypeText Type = iota + 1
	TypeCallback
)

func (t Type) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Event is anything the chat transport delivers to the conversation engine.
type Event interface {
	GetType() Type
	GetChatID() int64
}

// TextEvent is a plain text message typed by the user.
type TextEvent struct {
	ChatID     int64
	Text       string
	SenderName string
}

func (e *TextEvent) GetType() Type    { return TypeText }
func (e *TextEvent) GetChatID() int64 { return e.ChatID }

// CallbackEvent is a press on an inline menu button.
type CallbackEvent struct {
	ChatID     int64
	Token      string
	CallbackID string // Transport id used to acknowledge the press
	SenderName string
}

func (e *CallbackEvent) GetType() Type    { return TypeCallback }
func (e *CallbackEvent) GetChatID() int64 { return e.ChatID }
