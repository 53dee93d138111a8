// Package jsoncodec implements pkg/dispatcher.Codec on top of
// pkg/wireformat's deterministic JSON, the way the rest of the runtime
// frames bytes over the wire. Errors are carried as plain messages
// (not as one of pkg/joynrerrors' typed errors) since only their
// presence and text matter once they cross the wire — the typed
// distinction is a local, same-process concept for the continuation
// that raised it.
package jsoncodec

import (
	"errors"

	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/wireformat"
)

// Codec implements dispatcher.Codec.
type Codec struct{}

type requestWire struct {
	MethodName     string         `json:"methodName"`
	Params         []model.Value  `json:"params"`
	ParamDatatypes []string       `json:"paramDatatypes"`
	RequestReplyID string         `json:"requestReplyId"`
}

type replyWire struct {
	RequestReplyID string        `json:"requestReplyId"`
	Response       []model.Value `json:"response,omitempty"`
	Error          string        `json:"error,omitempty"`
}

type subscriptionRequestWire struct {
	SubscriptionID  string             `json:"subscriptionId"`
	SubscribeToName string             `json:"subscribeToName"`
	Qos             model.SubscriptionQos `json:"qos"`
}

type subscriptionStopWire struct {
	SubscriptionID string `json:"subscriptionId"`
}

type publicationWire struct {
	SubscriptionID string        `json:"subscriptionId"`
	Response       []model.Value `json:"response,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// DecodeRequest implements dispatcher.Codec.
func (Codec) DecodeRequest(b []byte) (model.RequestPayload, error) {
	var w requestWire
	if err := wireformat.Unmarshal(b, &w); err != nil {
		return model.RequestPayload{}, err
	}
	return model.RequestPayload{
		MethodName:     w.MethodName,
		Params:         w.Params,
		ParamDatatypes: w.ParamDatatypes,
		RequestReplyID: model.RequestReplyID(w.RequestReplyID),
	}, nil
}

// EncodeReply implements dispatcher.Codec.
func (Codec) EncodeReply(p model.ReplyPayload) ([]byte, error) {
	w := replyWire{
		RequestReplyID: string(p.RequestReplyID),
		Response:       p.Response,
	}
	if p.Error != nil {
		w.Error = p.Error.Error()
	}
	return wireformat.Marshal(w)
}

// DecodeReply implements dispatcher.Codec.
func (Codec) DecodeReply(b []byte) (model.ReplyPayload, error) {
	var w replyWire
	if err := wireformat.Unmarshal(b, &w); err != nil {
		return model.ReplyPayload{}, err
	}
	p := model.ReplyPayload{
		RequestReplyID: model.RequestReplyID(w.RequestReplyID),
		Response:       w.Response,
	}
	if w.Error != "" {
		p.Error = errors.New(w.Error)
	}
	return p, nil
}

// DecodeSubscriptionRequest implements dispatcher.Codec.
func (Codec) DecodeSubscriptionRequest(b []byte) (model.SubscriptionRequestPayload, error) {
	var w subscriptionRequestWire
	if err := wireformat.Unmarshal(b, &w); err != nil {
		return model.SubscriptionRequestPayload{}, err
	}
	return model.SubscriptionRequestPayload{
		SubscriptionID:  model.SubscriptionID(w.SubscriptionID),
		SubscribeToName: w.SubscribeToName,
		Qos:             w.Qos,
	}, nil
}

// DecodeSubscriptionStop implements dispatcher.Codec.
func (Codec) DecodeSubscriptionStop(b []byte) (model.SubscriptionStopPayload, error) {
	var w subscriptionStopWire
	if err := wireformat.Unmarshal(b, &w); err != nil {
		return model.SubscriptionStopPayload{}, err
	}
	return model.SubscriptionStopPayload{SubscriptionID: model.SubscriptionID(w.SubscriptionID)}, nil
}

// DecodePublication implements dispatcher.Codec.
func (Codec) DecodePublication(b []byte) (model.PublicationPayload, error) {
	var w publicationWire
	if err := wireformat.Unmarshal(b, &w); err != nil {
		return model.PublicationPayload{}, err
	}
	p := model.PublicationPayload{
		SubscriptionID: model.SubscriptionID(w.SubscriptionID),
		Response:       w.Response,
	}
	if w.Error != "" {
		p.Error = errors.New(w.Error)
	}
	return p, nil
}

// EncodePublication implements dispatcher.Codec.
func (Codec) EncodePublication(p model.PublicationPayload) ([]byte, error) {
	w := publicationWire{
		SubscriptionID: string(p.SubscriptionID),
		Response:       p.Response,
	}
	if p.Error != nil {
		w.Error = p.Error.Error()
	}
	return wireformat.Marshal(w)
}
