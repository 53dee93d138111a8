package dispatcher

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/joynr-go/joynr/pkg/interpreter"
	"github.com/joynr-go/joynr/pkg/jsoncodec"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/publication"
	"github.com/joynr-go/joynr/pkg/replycallers"
	"github.com/joynr-go/joynr/pkg/requestcallers"
	"github.com/joynr-go/joynr/pkg/subscription"
	"github.com/joynr-go/joynr/pkg/timerservice"
	"github.com/joynr-go/joynr/pkg/workerpool"
)

type fakeCaller struct{}

func (fakeCaller) InterfaceName() model.InterfaceName { return "io.joynr.Foo" }
func (fakeCaller) ProviderVersion() model.Version      { return model.Version{Major: 1} }

type recordingSender struct {
	mu   sync.Mutex
	sent []model.Message
}

func (s *recordingSender) Send(msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) last() (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return model.Message{}, false
	}
	return s.sent[len(s.sent)-1], true
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestDispatcher(t *testing.T, sender *recordingSender) *Dispatcher {
	t.Helper()
	pool := workerpool.New(2, 8)
	t.Cleanup(pool.Shutdown)
	return New(pool, sender, jsoncodec.Codec{}, replycallers.New(time.Minute), requestcallers.New(), interpreter.NewRegistrar())
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// encodeRequestForTest hand-builds the wire bytes for a request the
// way a consumer-side codec would, matching the field names
// pkg/jsoncodec.Codec.DecodeRequest expects.
func encodeRequestForTest(t *testing.T, p model.RequestPayload) []byte {
	t.Helper()
	b, err := json.Marshal(struct {
		MethodName     string        `json:"methodName"`
		Params         []model.Value `json:"params"`
		ParamDatatypes []string      `json:"paramDatatypes"`
		RequestReplyID string        `json:"requestReplyId"`
	}{
		MethodName:     p.MethodName,
		Params:         p.Params,
		ParamDatatypes: p.ParamDatatypes,
		RequestReplyID: string(p.RequestReplyID),
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return b
}

func encodeSubscriptionRequestForTest(t *testing.T, p model.SubscriptionRequestPayload) []byte {
	t.Helper()
	b, err := json.Marshal(struct {
		SubscriptionID  string                `json:"subscriptionId"`
		SubscribeToName string                `json:"subscribeToName"`
		Qos             model.SubscriptionQos `json:"qos"`
	}{
		SubscriptionID:  string(p.SubscriptionID),
		SubscribeToName: p.SubscribeToName,
		Qos:             p.Qos,
	})
	if err != nil {
		t.Fatalf("marshal subscription request: %v", err)
	}
	return b
}

func TestReceiveRequestDispatchesToInterpreterAndSendsReply(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, sender)

	interp := interpreter.New("io.joynr.Foo", model.Version{Major: 1})
	interp.Bind("echo", []string{"String"}, func(caller requestcallers.RequestCaller, params []model.Value, onValue func([]model.Value), onError func(error)) {
		onValue([]model.Value{params[0]})
	})
	d.registrar.Register(interp)
	d.AddRequestCaller("provider1", fakeCaller{})

	b := encodeRequestForTest(t, model.RequestPayload{
		MethodName:     "echo",
		Params:         []model.Value{model.NewText("hi")},
		ParamDatatypes: []string{"String"},
		RequestReplyID: "r1",
	})

	d.Receive(model.Message{
		Kind:    model.KindRequest,
		Header:  model.Header{From: "consumer1", To: "provider1", ID: "r1", Expiry: time.Now().Add(time.Minute)},
		Payload: b,
	})

	waitForCondition(t, time.Second, func() bool { return sender.count() == 1 })

	msg, _ := sender.last()
	if msg.Kind != model.KindReply {
		t.Fatalf("sent message kind = %v, want KindReply", msg.Kind)
	}
	reply, err := (jsoncodec.Codec{}).DecodeReply(msg.Payload)
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if reply.Error != nil {
		t.Fatalf("reply carried an error: %v", reply.Error)
	}
	if len(reply.Response) != 1 || reply.Response[0].Text != "hi" {
		t.Fatalf("reply.Response = %v, want echoed \"hi\"", reply.Response)
	}
}

func TestReceiveRequestNoCallerDropsSilently(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, sender)

	b := encodeRequestForTest(t, model.RequestPayload{MethodName: "echo", RequestReplyID: "r1"})
	d.Receive(model.Message{
		Kind:    model.KindRequest,
		Header:  model.Header{From: "consumer1", To: "no-such-provider", ID: "r1"},
		Payload: b,
	})

	time.Sleep(50 * time.Millisecond)
	if got := sender.count(); got != 0 {
		t.Fatalf("sender.count() = %d, want 0 (no caller installed)", got)
	}
}

func TestReceiveOneWayRequestNeverReplies(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, sender)

	interp := interpreter.New("io.joynr.Foo", model.Version{Major: 1})
	interp.Bind("fireAndForget", nil, func(caller requestcallers.RequestCaller, params []model.Value, onValue func([]model.Value), onError func(error)) {
		onValue(nil)
	})
	d.registrar.Register(interp)
	d.AddRequestCaller("provider1", fakeCaller{})

	b := encodeRequestForTest(t, model.RequestPayload{MethodName: "fireAndForget", RequestReplyID: "r1"})
	d.Receive(model.Message{
		Kind:    model.KindOneWayRequest,
		Header:  model.Header{From: "consumer1", To: "provider1", ID: "r1"},
		Payload: b,
	})

	time.Sleep(50 * time.Millisecond)
	if got := sender.count(); got != 0 {
		t.Fatalf("sender.count() = %d, want 0 for a one-way request", got)
	}
}

func TestHandleReplyDeliversToRegisteredCaller(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, sender)

	delivered := make(chan model.ReplyPayload, 1)
	d.AddReplyCaller("r1", replycallers.ReplyCaller{
		OnValue: func(p model.ReplyPayload) { delivered <- p },
	}, time.Minute)

	c := jsoncodec.Codec{}
	b, err := c.EncodeReply(model.ReplyPayload{RequestReplyID: "r1", Response: []model.Value{model.NewText("ok")}})
	if err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}

	d.Receive(model.Message{Kind: model.KindReply, Header: model.Header{ID: "r1"}, Payload: b})

	select {
	case p := <-delivered:
		if len(p.Response) != 1 || p.Response[0].Text != "ok" {
			t.Fatalf("delivered payload = %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("reply was not delivered")
	}
}

func TestHandleReplyUnknownIDIsDropped(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, sender)

	c := jsoncodec.Codec{}
	b, err := c.EncodeReply(model.ReplyPayload{RequestReplyID: "never-registered"})
	if err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}

	d.Receive(model.Message{Kind: model.KindReply, Header: model.Header{ID: "never-registered"}, Payload: b})
	time.Sleep(50 * time.Millisecond) // must not panic, nothing to assert beyond that
}

func TestSubscriptionRequestQueuedThenRestoredOnProviderRegistration(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, sender)
	timers := timerservice.New()
	defer timers.Shutdown()
	pubManager := publication.New(timers)
	d.RegisterPublicationManager(pubManager)

	b := encodeSubscriptionRequestForTest(t, model.SubscriptionRequestPayload{SubscriptionID: "s1", SubscribeToName: "temperature"})

	d.Receive(model.Message{
		Kind:    model.KindSubscriptionRequest,
		Header:  model.Header{From: "consumer1", To: "provider1", ID: "s1"},
		Payload: b,
	})
	waitForCondition(t, time.Second, func() bool { return pubManager.QueuedCount() == 1 })

	d.AddRequestCaller("provider1", fakeCaller{})
	waitForCondition(t, time.Second, func() bool { return pubManager.ActiveCount() == 1 })
	if got := pubManager.QueuedCount(); got != 0 {
		t.Fatalf("QueuedCount() after restore = %d, want 0", got)
	}
}

func TestHandlePublicationDeliversToSubscriptionManager(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, sender)
	timers := timerservice.New()
	defer timers.Shutdown()
	subManager := subscription.New(timers)
	d.RegisterSubscriptionManager(subManager)

	delivered := make(chan model.PublicationPayload, 1)
	subManager.Register(model.SubscriptionRequestPayload{SubscriptionID: "s1"}, subscription.Callback{
		OnPublication: func(p model.PublicationPayload) { delivered <- p },
	})

	c := jsoncodec.Codec{}
	b, err := c.EncodePublication(model.PublicationPayload{SubscriptionID: "s1", Response: []model.Value{model.NewText("23.5")}})
	if err != nil {
		t.Fatalf("EncodePublication: %v", err)
	}

	d.Receive(model.Message{Kind: model.KindPublication, Header: model.Header{ID: "s1"}, Payload: b})

	select {
	case p := <-delivered:
		if len(p.Response) != 1 || p.Response[0].Text != "23.5" {
			t.Fatalf("delivered = %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("publication was not delivered")
	}
}

func TestInvokeRecoveredConvertsProviderPanicToError(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(t, sender)

	interp := interpreter.New("io.joynr.Foo", model.Version{Major: 1})
	interp.Bind("explode", nil, func(caller requestcallers.RequestCaller, params []model.Value, onValue func([]model.Value), onError func(error)) {
		panic("provider bug")
	})
	d.registrar.Register(interp)
	d.AddRequestCaller("provider1", fakeCaller{})

	b := encodeRequestForTest(t, model.RequestPayload{MethodName: "explode", RequestReplyID: "r1"})
	d.Receive(model.Message{
		Kind:    model.KindRequest,
		Header:  model.Header{From: "consumer1", To: "provider1", ID: "r1", Expiry: time.Now().Add(time.Minute)},
		Payload: b,
	})

	waitForCondition(t, time.Second, func() bool { return sender.count() == 1 })
	msg, _ := sender.last()
	reply, err := (jsoncodec.Codec{}).DecodeReply(msg.Payload)
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if reply.Error == nil {
		t.Fatal("expected the reply to carry an error after a provider panic")
	}
}
