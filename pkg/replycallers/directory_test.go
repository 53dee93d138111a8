package replycallers

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joynr-go/joynr/pkg/joynrerrors"
	"github.com/joynr-go/joynr/pkg/model"
)

func TestDeliverInvokesOnValueExactlyOnce(t *testing.T) {
	d := New(time.Minute)
	defer d.Shutdown()

	var calls int32
	d.Add("r1", ReplyCaller{
		OnValue: func(model.ReplyPayload) { atomic.AddInt32(&calls, 1) },
		OnError: func(error) { t.Fatal("OnError should not fire for a value delivery") },
	}, time.Minute)

	d.Deliver("r1", model.ReplyPayload{RequestReplyID: "r1"})
	d.Deliver("r1", model.ReplyPayload{RequestReplyID: "r1"}) // second delivery is a no-op

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("OnValue fired %d times, want 1", got)
	}
}

func TestDeliverWithErrorInvokesOnError(t *testing.T) {
	d := New(time.Minute)
	defer d.Shutdown()

	var gotErr error
	d.Add("r1", ReplyCaller{
		OnValue: func(model.ReplyPayload) { t.Fatal("OnValue should not fire for an error reply") },
		OnError: func(err error) { gotErr = err },
	}, time.Minute)

	d.Deliver("r1", model.ReplyPayload{RequestReplyID: "r1", Error: errors.New("denied")})

	if gotErr == nil || gotErr.Error() != "denied" {
		t.Fatalf("OnError got %v, want \"denied\"", gotErr)
	}
}

func TestDeliverUnknownIDIsNoOp(t *testing.T) {
	d := New(time.Minute)
	defer d.Shutdown()
	d.Deliver("never-registered", model.ReplyPayload{}) // must not panic
}

func TestTTLExpiryFiresOnErrorExactlyOnce(t *testing.T) {
	d := New(10 * time.Millisecond)
	defer d.Shutdown()

	var gotErr error
	var calls int32
	d.Add("r1", ReplyCaller{
		OnError: func(err error) {
			atomic.AddInt32(&calls, 1)
			gotErr = err
		},
	}, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	var ttlErr *joynrerrors.TTLExpiredError
	if !errors.As(gotErr, &ttlErr) {
		t.Fatalf("expected TTLExpiredError, got %v", gotErr)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("OnError fired %d times on expiry, want 1", got)
	}
}

func TestZeroTTLExpiresImmediately(t *testing.T) {
	d := New(10 * time.Millisecond)
	defer d.Shutdown()

	var gotErr error
	d.Add("r1", ReplyCaller{
		OnError: func(err error) { gotErr = err },
	}, 0)

	time.Sleep(100 * time.Millisecond)

	var ttlErr *joynrerrors.TTLExpiredError
	if !errors.As(gotErr, &ttlErr) {
		t.Fatalf("expected TTLExpiredError for a zero-TTL request, got %v", gotErr)
	}
}

func TestDeliverRacingExpiryFiresAtMostOnce(t *testing.T) {
	d := New(5 * time.Millisecond)
	defer d.Shutdown()

	var valueCalls, errorCalls int32
	d.Add("r1", ReplyCaller{
		OnValue: func(model.ReplyPayload) { atomic.AddInt32(&valueCalls, 1) },
		OnError: func(error) { atomic.AddInt32(&errorCalls, 1) },
	}, 15*time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	// By now the TTL has almost certainly expired; a late Deliver call
	// must be a no-op rather than double-firing the continuation.
	d.Deliver("r1", model.ReplyPayload{RequestReplyID: "r1"})

	total := atomic.LoadInt32(&valueCalls) + atomic.LoadInt32(&errorCalls)
	if total != 1 {
		t.Fatalf("continuation fired %d times total, want exactly 1", total)
	}
}

func TestRemoveCancelsDeliveryAndExpiry(t *testing.T) {
	d := New(10 * time.Millisecond)
	defer d.Shutdown()

	var calls int32
	d.Add("r1", ReplyCaller{
		OnValue: func(model.ReplyPayload) { atomic.AddInt32(&calls, 1) },
		OnError: func(error) { atomic.AddInt32(&calls, 1) },
	}, 20*time.Millisecond)

	d.Remove("r1")
	time.Sleep(60 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("continuation fired %d times after Remove, want 0", got)
	}
	if _, ok := d.Lookup("r1"); ok {
		t.Fatal("Lookup should not find a removed entry")
	}
}
