// Package progress delivers session narration to an embedding host. The
// engine reports what it is doing at cycle boundaries; a host renders the
// updates as a transcript, a status line, or both.
package progress

import "strings"

// Kind distinguishes durable narration from transient status.
type Kind int

const (
	// KindNarration is a durable line belonging in the session transcript.
	KindNarration Kind = iota
	// KindStatus is a transient indicator line, superseded by the next
	// update.
	KindStatus
)

// Update is one narration message.
type Update struct {
	Kind    Kind
	Message string
}

// Callback receives updates. A nil callback drops them.
type Callback func(Update) error

// Durable reports whether the update belongs in a transcript.
func (u Update) Durable() bool { return u.Kind == KindNarration }

// Narrate sends a transcript line through cb, newline-terminated.
func Narrate(cb Callback, message string) error {
	return dispatch(cb, Update{Kind: KindNarration, Message: terminated(message)})
}

// Status sends a transient status line through cb.
func Status(cb Callback, message string) error {
	return dispatch(cb, Update{Kind: KindStatus, Message: message})
}

func dispatch(cb Callback, u Update) error {
	if cb == nil || u.Message == "" {
		return nil
	}
	return cb(u)
}

func terminated(s string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}
