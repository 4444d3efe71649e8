// Package grpc serves the account service to sibling services: login,
// session verification and the password reset protocol.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/admission"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/dmitrijs2005/taskmanager/internal/server/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Authenticator is the part of the auth service the transport needs.
type Authenticator interface {
	Login(ctx context.Context, identity, secret string) (*services.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*models.Account, *session.Claims, error)
}

// PasswordResetter is the part of the reset service the transport needs.
type PasswordResetter interface {
	RequestReset(ctx context.Context, identity string) error
	ConfirmReset(ctx context.Context, token, newSecret string) error
}

// Gates are the per-origin admission budgets applied to account service
// calls. A nil gate admits everything.
type Gates struct {
	Login   admission.Gate
	General admission.Gate
}

type GRPCServer struct {
	address string
	auth    Authenticator
	reset   PasswordResetter
	gates   Gates
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, auth Authenticator, reset PasswordResetter, gates Gates) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    auth,
		reset:   reset,
		gates:   gates,
		health:  health.NewServer(),
	}
}

// newServer creates the grpc.Server with interceptors and every service
// registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.admissionInterceptor, s.accessTokenInterceptor))

	RegisterAccountServiceServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}
