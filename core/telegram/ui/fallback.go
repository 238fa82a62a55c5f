package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers for updates that no command or
// callback claimed. Photos and documents are split because bots often
// accept one as an upload and reject the other.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownPhoto() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
