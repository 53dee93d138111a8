package globaldirectory

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joynr-go/joynr/pkg/joynrlog"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/wireformat"
)

var logger = joynrlog.For("globaldirectory")

const (
	grpcService  = "joynr.GlobalCapabilitiesDirectory"
	methodAdd    = "/" + grpcService + "/Add"
	methodRemove = "/" + grpcService + "/Remove"
	methodLookup = "/" + grpcService + "/Lookup"
	methodLookupByDomain = "/" + grpcService + "/LookupByDomain"
	methodTouch  = "/" + grpcService + "/Touch"
)

// these mirror the original's GlobalCapabilitiesDirectory.proto request
// and response messages, but are plain Go structs framed as JSON inside
// a wrapperspb.BytesValue rather than generated protobuf types — see
// pkg/transport/grpctransport's package comment for why.
type addRequest struct {
	Entry model.GlobalDiscoveryEntry `json:"entry"`
}

type removeRequest struct {
	ParticipantID model.ParticipantID `json:"participantId"`
}

type lookupRequest struct {
	ParticipantID model.ParticipantID `json:"participantId"`
}

type lookupResponse struct {
	Entry model.GlobalDiscoveryEntry `json:"entry"`
}

type lookupByDomainRequest struct {
	Domains   []model.Domain       `json:"domains"`
	Interface model.InterfaceName  `json:"interfaceName"`
}

type lookupByDomainResponse struct {
	Entries []model.GlobalDiscoveryEntry `json:"entries"`
}

type touchRequest struct {
	ClusterControllerID string `json:"clusterControllerId"`
}

// GRPCClient is a Client backed by a unary gRPC connection to the
// global capabilities directory service. Each method is invoked with
// grpc.Invoke directly against a hand-picked method name, carrying a
// JSON-encoded request/response pair inside wrapperspb.BytesValue —
// the same no-protoc approach pkg/transport/grpctransport uses for
// message exchange, applied here to simple unary RPCs instead of a
// bidi stream.
type GRPCClient struct {
	cc *grpc.ClientConn
}

// Dial connects to the global directory's gRPC endpoint.
func Dial(addr string) (*GRPCClient, error) {
	cc, err := grpc.Dial(addr, grpc.WithInsecure()) //nolint:staticcheck // no TLS: out of scope
	if err != nil {
		return nil, fmt.Errorf("globaldirectory: dial %s: %w", addr, err)
	}
	return &GRPCClient{cc: cc}, nil
}

func invoke(ctx context.Context, cc *grpc.ClientConn, method string, req, resp any) error {
	reqBytes, err := wireformat.Marshal(req)
	if err != nil {
		return err
	}
	var out wrapperspb.BytesValue
	if err := grpc.Invoke(ctx, method, wrapperspb.Bytes(reqBytes), &out, cc); err != nil { //nolint:staticcheck // grpc.Invoke: deliberate low-level unary call, see package comment
		return err
	}
	if resp == nil {
		return nil
	}
	return wireformat.Unmarshal(out.Value, resp)
}

// Add implements Client.
func (c *GRPCClient) Add(entry model.GlobalDiscoveryEntry, onSuccess func(), onError func(error)) {
	go func() {
		err := invoke(context.Background(), c.cc, methodAdd, addRequest{Entry: entry}, nil)
		if err != nil {
			onError(err)
			return
		}
		onSuccess()
	}()
}

// Remove implements Client.
func (c *GRPCClient) Remove(participantID model.ParticipantID) {
	go func() {
		err := invoke(context.Background(), c.cc, methodRemove, removeRequest{ParticipantID: participantID}, nil)
		if err != nil {
			logger.Warnf("global directory remove(%s) failed: %v", participantID, err)
		}
	}()
}

// Lookup implements Client.
func (c *GRPCClient) Lookup(participantID model.ParticipantID, onSuccess func(model.GlobalDiscoveryEntry), onError func(error)) {
	go func() {
		var resp lookupResponse
		err := invoke(context.Background(), c.cc, methodLookup, lookupRequest{ParticipantID: participantID}, &resp)
		if err != nil {
			onError(err)
			return
		}
		onSuccess(resp.Entry)
	}()
}

// LookupByDomain implements Client.
func (c *GRPCClient) LookupByDomain(domains []model.Domain, iface model.InterfaceName, timeout time.Duration, onSuccess func([]model.GlobalDiscoveryEntry), onError func(error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var resp lookupByDomainResponse
		err := invoke(ctx, c.cc, methodLookupByDomain, lookupByDomainRequest{Domains: domains, Interface: iface}, &resp)
		if err != nil {
			onError(err)
			return
		}
		onSuccess(resp.Entries)
	}()
}

// Touch implements Client.
func (c *GRPCClient) Touch(clusterControllerID string, onSuccess func(), onError func(error)) {
	go func() {
		err := invoke(context.Background(), c.cc, methodTouch, touchRequest{ClusterControllerID: clusterControllerID}, nil)
		if err != nil {
			onError(err)
			return
		}
		onSuccess()
	}()
}

// Close releases the underlying connection.
func (c *GRPCClient) Close() error {
	return c.cc.Close()
}
