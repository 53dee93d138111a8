// Package dispatcher implements C6, the message dispatcher of spec.md
// §4.6: receives messages, classifies them by kind, runs interpreters,
// correlates replies, and coordinates C1–C5.
//
// The success/error continuation captured for every inbound request
// (spec.md §9 "Callbacks capturing state → explicit continuation
// structs") is modeled as requestContinuation below, grounded on
// cpp/common/rpc/Request.cpp's pair of explicit onSuccess/onError
// callbacks rather than collapsed into a single Go (value, error)
// return — the two are genuinely distinct outcomes here (no reply at
// all vs. an error reply), not an error-handling nicety.
package dispatcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/joynr-go/joynr/pkg/interpreter"
	"github.com/joynr-go/joynr/pkg/joynrerrors"
	"github.com/joynr-go/joynr/pkg/joynrlog"
	"github.com/joynr-go/joynr/pkg/joynrmetrics"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/publication"
	"github.com/joynr-go/joynr/pkg/replycallers"
	"github.com/joynr-go/joynr/pkg/requestcallers"
	"github.com/joynr-go/joynr/pkg/subscription"
	"github.com/joynr-go/joynr/pkg/workerpool"
)

var logger = joynrlog.For("dispatcher")

// Sender sends a fully-formed outbound message. Implemented on top of
// pkg/transport and pkg/router.
type Sender interface {
	Send(msg model.Message) error
}

// Codec decodes/encodes message payload bytes. Serialization itself
// is an external collaborator (spec.md §1); the dispatcher only needs
// these seven operations.
type Codec interface {
	DecodeRequest(b []byte) (model.RequestPayload, error)
	EncodeReply(model.ReplyPayload) ([]byte, error)
	DecodeReply(b []byte) (model.ReplyPayload, error)
	DecodeSubscriptionRequest(b []byte) (model.SubscriptionRequestPayload, error)
	DecodeSubscriptionStop(b []byte) (model.SubscriptionStopPayload, error)
	DecodePublication(b []byte) (model.PublicationPayload, error)
	EncodePublication(model.PublicationPayload) ([]byte, error)
}

// Dispatcher is C6.
type Dispatcher struct {
	pool   *workerpool.Pool
	sender Sender
	codec  Codec

	replyCallers   *replycallers.Directory
	requestCallers *requestcallers.Directory
	registrar      *interpreter.Registrar

	// subscriptionHandlingMutex guards requestCallers add/remove
	// together with subscription-request handling, exactly as
	// spec.md §4.6 specifies: a subscription request arriving between
	// "caller not yet registered -> queue" and a concurrent
	// addRequestCaller -> restore(drain queue) must see one path or
	// the other, never neither.
	subscriptionHandlingMutex sync.Mutex

	pubManager *publication.Manager
	subManager *subscription.Manager
}

// New constructs a dispatcher. pubManager/subManager may be nil if
// this runtime instance only acts as a consumer or only as a
// provider, respectively (registerPublicationManager /
// registerSubscriptionManager attach them later in that case).
func New(pool *workerpool.Pool, sender Sender, codec Codec, replyCallers *replycallers.Directory, requestCallers *requestcallers.Directory, registrar *interpreter.Registrar) *Dispatcher {
	return &Dispatcher{
		pool:           pool,
		sender:         sender,
		codec:          codec,
		replyCallers:   replyCallers,
		requestCallers: requestCallers,
		registrar:      registrar,
	}
}

// RegisterPublicationManager attaches C5.
func (d *Dispatcher) RegisterPublicationManager(m *publication.Manager) { d.pubManager = m }

// RegisterSubscriptionManager attaches C4.
func (d *Dispatcher) RegisterSubscriptionManager(m *subscription.Manager) { d.subManager = m }

// AddRequestCaller installs a provider callable and restores any
// subscriptions queued for it, under the shared
// subscriptionHandlingMutex so a racing subscription request can't be
// lost (spec.md §4.6 "critical section").
func (d *Dispatcher) AddRequestCaller(participantID model.ParticipantID, caller requestcallers.RequestCaller) {
	d.subscriptionHandlingMutex.Lock()
	defer d.subscriptionHandlingMutex.Unlock()

	d.requestCallers.Add(participantID, caller)
	if d.pubManager != nil {
		d.pubManager.Restore(participantID, caller)
	}
}

// RemoveRequestCaller uninstalls a provider callable and purges any
// subscriptions targeting it.
func (d *Dispatcher) RemoveRequestCaller(participantID model.ParticipantID) {
	d.subscriptionHandlingMutex.Lock()
	defer d.subscriptionHandlingMutex.Unlock()

	d.requestCallers.Remove(participantID)
	if d.pubManager != nil {
		d.pubManager.RemoveAllSubscriptions(participantID)
	}
}

// AddReplyCaller registers a pending-reply continuation with a TTL.
func (d *Dispatcher) AddReplyCaller(id model.RequestReplyID, caller replycallers.ReplyCaller, ttl time.Duration) {
	d.replyCallers.Add(id, caller, ttl)
}

// RemoveReplyCaller cancels a pending-reply continuation.
func (d *Dispatcher) RemoveReplyCaller(id model.RequestReplyID) {
	d.replyCallers.Remove(id)
}

// Receive enqueues msg for asynchronous processing on the worker pool
// (spec.md §4.6). Errors submitting to a shut-down pool are logged,
// not returned, since the transport layer that calls Receive has no
// useful recovery action.
func (d *Dispatcher) Receive(msg model.Message) {
	if err := d.pool.Submit(func() { d.process(msg) }); err != nil {
		logger.Errorf("dropping message %s (%s): %v", msg.Header.ID, msg.Kind, err)
	}
}

func (d *Dispatcher) process(msg model.Message) {
	joynrmetrics.RequestsReceived.WithLabelValues(msg.Kind.String()).Inc()
	switch msg.Kind {
	case model.KindRequest, model.KindOneWayRequest:
		d.handleRequest(msg)
	case model.KindReply:
		d.handleReply(msg)
	case model.KindSubscriptionRequest, model.KindBroadcastSubscriptionRequest, model.KindMulticastSubscriptionRequest:
		d.handleSubscriptionRequest(msg)
	case model.KindSubscriptionStop:
		d.handleSubscriptionStop(msg)
	case model.KindPublication:
		d.handlePublication(msg)
	default:
		logger.Errorf("unknown message kind %v, dropping", msg.Kind)
	}
}

// requestContinuation is the explicit continuation struct of spec.md
// §9: it captures exactly from/to/requestReplyId/expiry plus the two
// outcome callbacks, constructed by the dispatcher and handed to the
// interpreter as two function references. Its lifetime is tied to
// this one worker task.
type requestContinuation struct {
	d        *Dispatcher
	from     model.ParticipantID
	to       model.ParticipantID
	id       model.RequestReplyID
	expiry   time.Time
	oneWay   bool
}

func (c *requestContinuation) onValue(response []model.Value) {
	if c.oneWay {
		return
	}
	c.d.sendReply(c.to, c.from, model.ReplyPayload{RequestReplyID: c.id, Response: response}, c.expiry)
}

func (c *requestContinuation) onError(err error) {
	if c.oneWay {
		logger.Errorf("one-way request %s from provider %s failed: %v", c.id, c.to, err)
		return
	}
	c.d.sendReply(c.to, c.from, model.ReplyPayload{RequestReplyID: c.id, Error: err}, c.expiry)
}

func (d *Dispatcher) sendReply(from, to model.ParticipantID, payload model.ReplyPayload, requestExpiry time.Time) {
	b, err := d.codec.EncodeReply(payload)
	if err != nil {
		logger.Errorf("failed to encode reply %s: %v", payload.RequestReplyID, err)
		return
	}
	ttl := model.Header{Expiry: requestExpiry}.TTL(time.Now())
	msg := model.Message{
		Kind: model.KindReply,
		Header: model.Header{
			From:   from,
			To:     to,
			Expiry: time.Now().Add(ttl),
			ID:     string(payload.RequestReplyID),
		},
	}
	msg.Payload = b
	if err := d.sender.Send(msg); err != nil {
		logger.Errorf("failed to send reply %s: %v", payload.RequestReplyID, err)
	}
}

func (d *Dispatcher) handleRequest(msg model.Message) {
	caller, ok := d.requestCallers.Lookup(msg.Header.To)
	if !ok {
		logger.Errorf("no request caller installed for %s, dropping request %s", msg.Header.To, msg.Header.ID)
		return
	}

	request, err := d.codec.DecodeRequest(msg.Payload)
	if err != nil {
		logger.Errorf("failed to decode request %s: %v", msg.Header.ID, err)
		return
	}

	interp, ok := d.registrar.Lookup(caller.InterfaceName(), caller.ProviderVersion().Major)
	if !ok {
		logger.Errorf("no interpreter registered for %s, dropping request %s", caller.InterfaceName(), msg.Header.ID)
		return
	}

	cont := &requestContinuation{
		d:      d,
		from:   msg.Header.From,
		to:     msg.Header.To,
		id:     request.RequestReplyID,
		expiry: msg.Header.Expiry,
		oneWay: msg.Kind == model.KindOneWayRequest,
	}

	invokeErr := invokeRecovered(interp, caller, request, cont)
	if invokeErr != nil {
		cont.onError(invokeErr)
	}
}

// invokeRecovered calls the interpreter and converts a provider panic
// into a ProviderRuntimeError, per spec.md §4.3: "provider-thrown
// runtime exceptions are caught and surfaced through the error
// continuation... never propagated through the worker thread."
func invokeRecovered(interp *interpreter.Interpreter, caller requestcallers.RequestCaller, request model.RequestPayload, cont *requestContinuation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = providerPanicError(r)
		}
	}()
	return interp.Invoke(caller, request, cont.onValue, cont.onError)
}

func providerPanicError(r any) error {
	return &joynrerrors.ProviderRuntimeError{Message: fmt.Sprintf("provider panicked: %v", r)}
}

func (d *Dispatcher) handleReply(msg model.Message) {
	payload, err := d.codec.DecodeReply(msg.Payload)
	if err != nil {
		logger.Errorf("failed to decode reply %s: %v", msg.Header.ID, err)
		return
	}
	if _, ok := d.replyCallers.Lookup(payload.RequestReplyID); !ok {
		logger.Infof("reply %s has no (or an already-expired) caller, dropping", payload.RequestReplyID)
		joynrmetrics.RepliesDropped.Inc()
		return
	}
	joynrmetrics.RepliesDelivered.Inc()
	d.replyCallers.Deliver(payload.RequestReplyID, payload)
}

func (d *Dispatcher) handleSubscriptionRequest(msg model.Message) {
	request, err := d.codec.DecodeSubscriptionRequest(msg.Payload)
	if err != nil {
		logger.Errorf("failed to decode subscription request %s: %v", msg.Header.ID, err)
		return
	}
	if d.pubManager == nil {
		logger.Errorf("no publication manager registered, dropping subscription request %s", request.SubscriptionID)
		return
	}

	d.subscriptionHandlingMutex.Lock()
	defer d.subscriptionHandlingMutex.Unlock()

	caller, ok := d.requestCallers.Lookup(msg.Header.To)
	if ok {
		d.pubManager.AddInstalled(msg.Header.From, msg.Header.To, caller, request, d)
	} else {
		d.pubManager.AddQueued(msg.Header.From, msg.Header.To, request, d)
	}
}

func (d *Dispatcher) handleSubscriptionStop(msg model.Message) {
	stop, err := d.codec.DecodeSubscriptionStop(msg.Payload)
	if err != nil {
		logger.Errorf("failed to decode subscription stop %s: %v", msg.Header.ID, err)
		return
	}
	if d.pubManager != nil {
		d.pubManager.StopPublication(stop.SubscriptionID)
	}
}

func (d *Dispatcher) handlePublication(msg model.Message) {
	payload, err := d.codec.DecodePublication(msg.Payload)
	if err != nil {
		logger.Errorf("failed to decode publication %s: %v", msg.Header.ID, err)
		return
	}
	if d.subManager == nil || !d.subManager.OnPublication(payload) {
		logger.Warnf("no callback for subscription %s, dropping publication", payload.SubscriptionID)
	}
}

// SendPublication implements publication.Sender on top of the
// dispatcher's own Sender/Codec, so pkg/publication never has to know
// about pkg/transport directly.
func (d *Dispatcher) SendPublication(to model.ParticipantID, payload model.PublicationPayload, ttl time.Duration) error {
	b, err := d.codec.EncodePublication(payload)
	if err != nil {
		return err
	}
	msg := model.Message{
		Kind: model.KindPublication,
		Header: model.Header{
			To:     to,
			Expiry: time.Now().Add(ttl),
			ID:     string(payload.SubscriptionID),
		},
		Payload: b,
	}
	return d.sender.Send(msg)
}
