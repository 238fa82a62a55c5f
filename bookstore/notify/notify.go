// Package notify declares the outbound side of the messaging transport as seen by the engines.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// MediaKind distinguishes how an opaque reference is rendered.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
)

// Media is an opaque reference plus its kind.
type Media struct {
	Ref  string
	Kind MediaKind
}

// Action is a button attached to a notification. Tag and Payload come back as a button_press.
type Action struct {
	Label   string
	Tag     string
	Payload string
}

// Gateway sends notifications to actors. Failures are returned as *DeliveryError and are
// never fatal to the caller.
type Gateway interface {
	SendText(ctx context.Context, to int64, text string, actions ...Action) error
	SendMedia(ctx context.Context, to int64, media Media, caption string, actions ...Action) error
}

// DeliveryError reports that a notification did not reach its recipient.
type DeliveryError struct {
	To  int64
	Op  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %d: %v", e.Op, e.To, e.Err)
}

// Unwrap returns the transport error.
func (e *DeliveryError) Unwrap() error { return e.Err }

// Code implements the coder contract.
func (e *DeliveryError) Code() string { return "DELIVERY_FAILURE" }

// IsDeliveryFailure reports whether err carries a DeliveryError.
func IsDeliveryFailure(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// Discard is a Gateway that drops every notification.
type Discard struct{}

// SendText drops the message.
func (Discard) SendText(context.Context, int64, string, ...Action) error { return nil }

// SendMedia drops the media.
func (Discard) SendMedia(context.Context, int64, Media, string, ...Action) error { return nil }
