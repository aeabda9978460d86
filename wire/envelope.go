package wire

import "fmt"

// Protocol version carried in every envelope.
const ProtocolVersion uint8 = 1

// Kind discriminates the three payload classes sharing the stream.
type Kind uint8

const (
	KindRequest  Kind = 1
	KindResponse Kind = 2
	KindEvent    Kind = 3
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "REQUEST"
	case KindResponse:
		return "RESPONSE"
	case KindEvent:
		return "EVENT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// Envelope is the decoded logical content of one frame.
//
// Seq is unique per sender per connection. Responses carry ReplyTo set to the
// Seq of the request they answer; correlation is always by id, never by
// message type, so concurrent requests of the same type are unambiguous.
type Envelope struct {
	Version uint8   // Protocol version (always 1)
	Kind    Kind    // Payload class discriminator
	Type    string  // Message type name, or the event category for KindEvent
	Seq     uint32  // Sender-unique sequence id
	ReplyTo *uint32 // Seq of the request being answered (responses only)
	Payload []byte  // Opaque serialized body; semantics belong to the application
}

func newEnvelope(kind Kind, seq uint32, msgType string, payload []byte) *Envelope {
	return &Envelope{
		Version: ProtocolVersion,
		Kind:    kind,
		Type:    msgType,
		Seq:     seq,
		Payload: payload,
	}
}

// NewRequest creates a request envelope.
func NewRequest(seq uint32, msgType string, payload []byte) *Envelope {
	return newEnvelope(KindRequest, seq, msgType, payload)
}

// NewResponse creates a response envelope answering the request with sequence
// id replyTo.
func NewResponse(seq uint32, replyTo uint32, msgType string, payload []byte) *Envelope {
	env := newEnvelope(KindResponse, seq, msgType, payload)
	env.ReplyTo = &replyTo
	return env
}

// NewEvent creates an unsolicited event envelope for the given category.
func NewEvent(seq uint32, category string, payload []byte) *Envelope {
	return newEnvelope(KindEvent, seq, category, payload)
}

// IsResponse returns true when the envelope answers an earlier request.
func (e *Envelope) IsResponse() bool {
	return e.Kind == KindResponse
}
