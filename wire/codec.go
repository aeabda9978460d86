package wire

import (
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// CBOR map keys. Integer keys keep the envelope compact; both peers must use
// the same layout.
const (
	keyVersion = 0 // version (u8, always 1)
	keyKind    = 1 // kind (u8)
	keyType    = 2 // type (tstr)
	keySeq     = 3 // seq (u32)
	keyReplyTo = 4 // reply_to (u32, responses only)
	keyPayload = 5 // payload (bstr, optional)
)

// EncodeEnvelope encodes an Envelope to CBOR bytes using integer keys.
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, errors.New("envelope type must not be empty")
	}
	if env.Kind == KindResponse && env.ReplyTo == nil {
		return nil, errors.New("response envelope missing reply_to")
	}

	m := make(map[int]interface{})
	m[keyVersion] = uint8(ProtocolVersion)
	m[keyKind] = uint8(env.Kind)
	m[keyType] = env.Type
	m[keySeq] = env.Seq
	if env.ReplyTo != nil {
		m[keyReplyTo] = *env.ReplyTo
	}
	if env.Payload != nil {
		m[keyPayload] = env.Payload
	}

	return cbor.Marshal(m)
}

// DecodeEnvelope decodes CBOR bytes to an Envelope using integer keys.
// A decode failure invalidates the stream's framing guarantees, so callers
// must treat it as fatal to the connection.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var m map[int]interface{}
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	env := &Envelope{}

	verVal, ok := m[keyVersion]
	if !ok {
		return nil, errors.New("missing version (key 0)")
	}
	ver, ok := verVal.(uint64)
	if !ok {
		return nil, errors.New("version must be uint")
	}
	env.Version = uint8(ver)
	if env.Version != ProtocolVersion {
		return nil, fmt.Errorf("invalid version %d, expected %d", env.Version, ProtocolVersion)
	}

	kindVal, ok := m[keyKind]
	if !ok {
		return nil, errors.New("missing kind (key 1)")
	}
	kind, ok := kindVal.(uint64)
	if !ok {
		return nil, errors.New("kind must be uint")
	}
	// Range-check before narrowing so out-of-range values cannot alias a
	// valid kind.
	if kind < uint64(KindRequest) || kind > uint64(KindEvent) {
		return nil, fmt.Errorf("invalid kind %d", kind)
	}
	env.Kind = Kind(kind)

	typeVal, ok := m[keyType]
	if !ok {
		return nil, errors.New("missing type (key 2)")
	}
	msgType, ok := typeVal.(string)
	if !ok || msgType == "" {
		return nil, errors.New("type must be a non-empty string")
	}
	env.Type = msgType

	seqVal, ok := m[keySeq]
	if !ok {
		return nil, errors.New("missing seq (key 3)")
	}
	seq, ok := seqVal.(uint64)
	if !ok {
		return nil, errors.New("seq must be uint")
	}
	if seq > math.MaxUint32 {
		return nil, fmt.Errorf("seq %d exceeds uint32 range", seq)
	}
	env.Seq = uint32(seq)

	if replyVal, ok := m[keyReplyTo]; ok {
		reply, ok := replyVal.(uint64)
		if !ok {
			return nil, errors.New("reply_to must be uint")
		}
		if reply > math.MaxUint32 {
			return nil, fmt.Errorf("reply_to %d exceeds uint32 range", reply)
		}
		r := uint32(reply)
		env.ReplyTo = &r
	}
	if env.Kind == KindResponse && env.ReplyTo == nil {
		return nil, errors.New("response envelope missing reply_to (key 4)")
	}

	if payloadVal, ok := m[keyPayload]; ok {
		payload, ok := payloadVal.([]byte)
		if !ok {
			return nil, errors.New("payload must be bytes")
		}
		env.Payload = payload
	}

	return env, nil
}
