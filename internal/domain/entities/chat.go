package entities

// ChatKind is the platform's chat type.
type ChatKind string

const (
	ChatKindPrivate    ChatKind = "private"
	ChatKindGroup      ChatKind = "group"
	ChatKindSupergroup ChatKind = "supergroup"
	ChatKindChannel    ChatKind = "channel"
)

// IsGroup reports whether the chat is a group or supergroup.
func (k ChatKind) IsGroup() bool {
	return k == ChatKindGroup || k == ChatKindSupergroup
}

// ChatEvent is a text message or command delivered by the chat platform.
// UserID is zero for posts made on behalf of a channel.
type ChatEvent struct {
	ChatID    int64
	ChatKind  ChatKind
	UserID    int64
	MessageID int64
	Text      string
}

// CallbackEvent is a press on an inline button.
type CallbackEvent struct {
	ID        string
	ChatID    int64
	ChatKind  ChatKind
	MessageID int64
	UserID    int64
	Data      string
}

// Button is an inline keyboard button. Exactly one of CallbackData or URL is set.
type Button struct {
	Text         string
	CallbackData string
	URL          string
}

// BotMessage is an outgoing message rendered as HTML.
type BotMessage struct {
	Text     string
	Keyboard [][]Button
}
