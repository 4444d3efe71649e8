package grpc

import (
	"context"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/admission"
	"github.com/dmitrijs2005/taskmanager/internal/server/metrics"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// retryAfterKey carries the rejection backoff in whole seconds.
const retryAfterKey = "retry-after"

type ctxKey string

const accountKey ctxKey = "account"

func accountFrom(ctx context.Context) *models.Account {
	a, _ := ctx.Value(accountKey).(*models.Account)
	return a
}

// WithSessionToken attaches a session token to the outgoing metadata.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.SessionMetadataKey, token)
}

// accessTokenInterceptor resolves the session token of protected methods
// into an account.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if info.FullMethod == verifySessionMethod {

		var token string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.SessionMetadataKey)
			if len(values) > 0 {
				token = values[0]
			}
		}
		if len(token) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		a, _, err := s.auth.Authenticate(ctx, token)
		if err != nil {
			return nil, toStatus(err)
		}

		ctx = context.WithValue(ctx, accountKey, a)
	}

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if code == codes.Internal || code == codes.Unavailable {
		s.logger.Error(ctx, "gRPC request failed", args...)
	} else {
		s.logger.Info(ctx, "gRPC request", args...)
	}

	return resp, err
}

// peerOrigin returns the host part of the caller's transport address.
func peerOrigin(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// admissionInterceptor applies the general budget to every account service
// call and the failed-login budget to Login. Rejected calls never reach the
// services. A failing gate admits the call.
func (s *GRPCServer) admissionInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
		return handler(ctx, req)
	}

	origin := peerOrigin(ctx)

	if gate := s.gates.General; gate != nil {
		d, err := gate.Allow(ctx, origin)
		switch {
		case err != nil:
			s.logger.Warn(ctx, "admission gate unavailable", "policy", gate.Policy().Name, "error", err)
		case !d.Allowed:
			return nil, s.reject(ctx, gate, d, "Too many requests, please try again later.")
		}
	}

	if info.FullMethod != loginMethod || s.gates.Login == nil {
		return handler(ctx, req)
	}

	gate := s.gates.Login
	d, err := gate.Peek(ctx, origin)
	switch {
	case err != nil:
		s.logger.Warn(ctx, "admission gate unavailable", "policy", gate.Policy().Name, "error", err)
	case !d.Allowed:
		return nil, s.reject(ctx, gate, d, "Too many login attempts, please try again later.")
	}

	resp, err := handler(ctx, req)
	if code := status.Code(err); code == codes.Unauthenticated || code == codes.PermissionDenied {
		if rerr := gate.Record(ctx, origin); rerr != nil {
			s.logger.Warn(ctx, "admission gate unavailable", "policy", gate.Policy().Name, "error", rerr)
		}
	}
	return resp, err
}

func (s *GRPCServer) reject(ctx context.Context, gate admission.Gate, d admission.Decision, message string) error {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	_ = grpc.SetTrailer(ctx, metadata.Pairs(retryAfterKey, strconv.Itoa(secs)))
	metrics.AdmissionRejectedTotal.WithLabelValues(gate.Policy().Name).Inc()
	return status.Error(codes.ResourceExhausted, message)
}
