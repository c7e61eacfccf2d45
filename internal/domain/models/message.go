package models

import (
	"strings"
	"time"
)

// BodyKind tags the variant held by an Envelope body.
type BodyKind string

const (
	BodyConversation BodyKind = "conversation"
	BodyExtendedText BodyKind = "extended_text"
	BodyMediaCaption BodyKind = "media_caption"
	BodyOther        BodyKind = "other"
)

// Body is one variant of an inbound message body. A network message can
// carry several at once; Envelope.Text picks among them.
type Body struct {
	Kind BodyKind `json:"kind"`
	// MediaType names the media for BodyMediaCaption (image, video) or the
	// payload type for BodyOther.
	MediaType string `json:"mediaType,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Envelope is a raw inbound message as delivered by the transport.
type Envelope struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	FromSelf   bool      `json:"fromSelf"`
	Timestamp  time.Time `json:"timestamp"`
	Bodies     []Body    `json:"bodies"`
}

var bodyPriority = []BodyKind{BodyConversation, BodyExtendedText, BodyMediaCaption}

// Text extracts the message text: plain conversation text first, then
// extended text, then a media caption. The first non-empty value wins.
func (e *Envelope) Text() string {
	for _, kind := range bodyPriority {
		for _, b := range e.Bodies {
			if b.Kind == kind && strings.TrimSpace(b.Text) != "" {
				return b.Text
			}
		}
	}
	return ""
}

// InboundMessage is the normalized form of an Envelope used by dispatch.
type InboundMessage struct {
	SenderID           string    `json:"senderId"`
	SenderName         string    `json:"senderName,omitempty"`
	RawText            string    `json:"rawText"`
	FromSelf           bool      `json:"fromSelf"`
	FromPrivilegedUser bool      `json:"fromPrivilegedUser"`
	Timestamp          time.Time `json:"timestamp"`
}

// ClassificationKind is the routing decision for an inbound message.
type ClassificationKind int

const (
	// ClassIgnore drops the message.
	ClassIgnore ClassificationKind = iota
	// ClassCommand routes the message to a handler.
	ClassCommand
	// ClassPlainText offers the message to the auto-reply orchestrator.
	ClassPlainText
)

// String implements fmt.Stringer.
func (k ClassificationKind) String() string {
	switch k {
	case ClassCommand:
		return "command"
	case ClassPlainText:
		return "plain_text"
	default:
		return "ignore"
	}
}

// Classification carries the kind plus the fields relevant to it.
type Classification struct {
	Kind ClassificationKind
	// Name and Args are set for ClassCommand.
	Name string
	Args []string
	// Text is set for ClassPlainText.
	Text string
}

// OutboundMessage is what the gateway asks the transport to deliver.
type OutboundMessage struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Caption  string `json:"caption,omitempty"`
}
