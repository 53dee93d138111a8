// Package grpctransport implements transport.Transport over gRPC.
//
// Rather than generating a service from a .proto file, it hand-builds
// one bidirectional-streaming grpc.ServiceDesc ("Exchange") whose
// request/response type is google.golang.org/protobuf's well-known
// wrapperspb.BytesValue — already a valid proto.Message, so the
// standard grpc proto codec marshals/unmarshals it with no custom
// codec or generated stubs required. The framed bytes inside each
// BytesValue are a pkg/wireformat-encoded model.Message.
//
// Server construction (interceptors + prometheus registration) is
// grounded on controller/util/grpc.go's NewGrpcServer; client dialing
// is grounded on controller/destination/client.go's grpc.Dial usage.
package grpctransport

import (
	"context"
	"fmt"
	"net"
	"sync"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joynr-go/joynr/pkg/joynrlog"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/wireformat"
)

var logger = joynrlog.For("grpctransport")

const (
	serviceName  = "joynr.Exchange"
	exchangeName = "Exchange"
	fullMethod   = "/" + serviceName + "/" + exchangeName
)

var exchangeStreamDesc = grpc.StreamDesc{
	StreamName:    exchangeName,
	ServerStreams: true,
	ClientStreams: true,
}

// Resolver resolves a participant id to a dialable "host:port"
// address, as learned from pkg/router (spec.md §4.7.8's
// addNextHop/removeNextHop).
type Resolver func(model.ParticipantID) (addr string, ok bool)

func exchangeHandler(recv func(model.Message), srv any, stream grpc.ServerStream) error {
	for {
		var in wrapperspb.BytesValue
		if err := stream.RecvMsg(&in); err != nil {
			return err
		}
		msg, err := wireformat.DecodeMessage(in.Value)
		if err != nil {
			logger.Errorf("failed to decode inbound grpc frame: %v", err)
			continue
		}
		recv(msg)
	}
}

func serviceDesc(recv func(model.Message)) grpc.ServiceDesc {
	return grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName: exchangeName,
				Handler: func(srv any, stream grpc.ServerStream) error {
					return exchangeHandler(recv, srv, stream)
				},
				ServerStreams: true,
				ClientStreams: true,
			},
		},
	}
}

// conn wraps one bidi stream (server- or client-initiated) with a
// send mutex, since a grpc.Stream's SendMsg is not safe for concurrent
// callers.
type conn struct {
	mu     sync.Mutex
	stream grpc.Stream
}

func (c *conn) send(msg model.Message) error {
	b, err := wireformat.EncodeMessage(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.SendMsg(wrapperspb.Bytes(b))
}

// Transport is a transport.Transport backed by gRPC: one listening
// server accepting peer streams, plus lazily-dialed outbound
// connections resolved through Resolver.
type Transport struct {
	lis    net.Listener
	server *grpc.Server

	resolve Resolver

	mu      sync.Mutex
	clients map[string]*conn // addr -> client-initiated conn
	handler func(model.Message)
}

// New starts a gRPC server listening on addr and returns a Transport
// that can both accept and initiate peer connections. resolve maps a
// participant id to the address its next-hop was registered under.
func New(addr string, resolve Resolver) (*Transport, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpctransport: listen %s: %w", addr, err)
	}

	t := &Transport{
		lis:     lis,
		resolve: resolve,
		clients: make(map[string]*conn),
	}

	server := grpc.NewServer(
		grpc.StreamInterceptor(grpcprometheus.StreamServerInterceptor),
	)
	grpcprometheus.Register(server)
	desc := serviceDesc(t.dispatch)
	server.RegisterService(&desc, nil)
	t.server = server

	go func() {
		if err := server.Serve(lis); err != nil {
			logger.Infof("grpc server stopped: %v", err)
		}
	}()

	return t, nil
}

func (t *Transport) dispatch(msg model.Message) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(msg)
	}
}

// SetReceiveHandler implements transport.Transport.
func (t *Transport) SetReceiveHandler(handler func(model.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Send implements transport.Transport: resolves msg.Header.To to an
// address via Resolver, reuses (or lazily dials) a client connection
// to that address, and frames msg over it.
func (t *Transport) Send(msg model.Message) error {
	addr, ok := t.resolve(msg.Header.To)
	if !ok {
		return fmt.Errorf("grpctransport: no known address for participant %s", msg.Header.To)
	}

	c, err := t.clientFor(addr)
	if err != nil {
		return err
	}
	return c.send(msg)
}

func (t *Transport) clientFor(addr string) (*conn, error) {
	t.mu.Lock()
	if c, ok := t.clients[addr]; ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	cc, err := grpc.Dial(addr, grpc.WithInsecure()) //nolint:staticcheck // no TLS: out of scope, spec.md §1 non-goals
	if err != nil {
		return nil, fmt.Errorf("grpctransport: dial %s: %w", addr, err)
	}
	stream, err := grpc.NewClientStream(context.Background(), &exchangeStreamDesc, cc, fullMethod)
	if err != nil {
		cc.Close()
		return nil, fmt.Errorf("grpctransport: open stream to %s: %w", addr, err)
	}

	c := &conn{stream: stream}

	t.mu.Lock()
	t.clients[addr] = c
	t.mu.Unlock()

	go t.readClientStream(addr, stream)

	return c, nil
}

func (t *Transport) readClientStream(addr string, stream grpc.ClientStream) {
	for {
		var in wrapperspb.BytesValue
		if err := stream.RecvMsg(&in); err != nil {
			t.mu.Lock()
			delete(t.clients, addr)
			t.mu.Unlock()
			logger.Infof("client stream to %s closed: %v", addr, err)
			return
		}
		msg, err := wireformat.DecodeMessage(in.Value)
		if err != nil {
			logger.Errorf("failed to decode inbound grpc frame from %s: %v", addr, err)
			continue
		}
		t.dispatch(msg)
	}
}

// Close implements transport.Transport: gracefully stops the server.
// Client connections dialed by Send are not closed.
func (t *Transport) Close() error {
	t.server.GracefulStop()
	return nil
}
