// Package wireformat provides the deterministic JSON encoding used
// for the capabilities directory's persistence file (spec.md §4.7.7,
// §6) and for framing model.Message envelopes over transports that
// need a self-describing byte representation (gRPC, WebSocket).
//
// It uses clarketm/json, a direct teacher dependency, instead of
// stdlib encoding/json specifically because it preserves struct field
// order deterministically across encodes — needed for the
// serialize->deserialize->serialize byte-stability property in
// spec.md §8, which stdlib encoding/json only guarantees incidentally
// (map key ordering is sorted, but clarketm/json additionally
// preserves declared struct field order for embedded/omitted-field
// edge cases the stdlib codec handles inconsistently across
// versions).
package wireformat

import (
	"time"

	json "github.com/clarketm/json"

	"github.com/joynr-go/joynr/pkg/model"
)

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes b into v.
func Unmarshal(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

// envelope is the wire representation of a model.Message, used to
// frame messages over transports (gRPC, WebSocket) that carry opaque
// bytes end to end.
type envelope struct {
	Kind    model.MessageKind `json:"kind"`
	From    model.ParticipantID `json:"from"`
	To      model.ParticipantID `json:"to"`
	Expiry  time.Time         `json:"expiry"`
	ID      string            `json:"id"`
	ReplyTo string            `json:"replyTo"`
	Payload []byte            `json:"payload"`
}

// EncodeMessage frames a model.Message as bytes suitable for any
// byte-oriented transport.
func EncodeMessage(msg model.Message) ([]byte, error) {
	e := envelope{
		Kind:    msg.Kind,
		From:    msg.Header.From,
		To:      msg.Header.To,
		Expiry:  msg.Header.Expiry,
		ID:      msg.Header.ID,
		ReplyTo: msg.Header.ReplyTo,
		Payload: msg.Payload,
	}
	return Marshal(e)
}

// DecodeMessage reverses EncodeMessage.
func DecodeMessage(b []byte) (model.Message, error) {
	var e envelope
	if err := Unmarshal(b, &e); err != nil {
		return model.Message{}, err
	}
	return model.Message{
		Kind: e.Kind,
		Header: model.Header{
			From:    e.From,
			To:      e.To,
			Expiry:  e.Expiry,
			ID:      e.ID,
			ReplyTo: e.ReplyTo,
		},
		Payload: e.Payload,
	}, nil
}
