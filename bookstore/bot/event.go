// Package bot binds the bookstore engines to Telegram: inbound updates become Events,
// Dispatch turns them into Responses, and the telebot adapter renders those back.
package bot

import "github.com/m3rciful/bookbot/bookstore/notify"

// Kind classifies an inbound event.
type Kind int

const (
	KindCommand Kind = iota
	KindButton
	KindText
	KindMedia
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindButton:
		return "button"
	case KindText:
		return "text"
	case KindMedia:
		return "media"
	}
	return "unknown"
}

// Event is one inbound interaction of an actor.
type Event struct {
	Actor    int64
	Username string
	Kind     Kind
	// Name is the command without the slash, or the button tag.
	Name string
	// Args is the command argument string, or the button payload.
	Args  string
	Text  string
	Media notify.Media
}

// Response is one outbound message to the actor who caused the event.
type Response struct {
	Text    string
	Actions []notify.Action
	// Media, when set, is sent with Text as its caption.
	Media *notify.Media
	// Columns is the number of buttons per row; 0 means one per row.
	Columns int
}

func reply(text string, actions ...notify.Action) Response {
	return Response{Text: text, Actions: actions}
}
