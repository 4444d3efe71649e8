package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/policy"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	msgInvalidCredentials = "Invalid credentials. Please try again."
	msgAccountLocked      = "Account is temporarily locked. Please try again later."
	msgInvalidResetToken  = "Invalid or expired reset token."
	msgInvalidSession     = "invalid session"
	msgGeneric            = "An error occurred. Please try again."
	msgResetRequested     = "If an account with that email exists, a password reset link has been sent."
	msgResetDone          = "Password has been reset successfully"
)

// toStatus maps service errors onto gRPC status codes without leaking
// internal causes.
func toStatus(err error) error {
	var violation *policy.Violation
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, msgInvalidCredentials)
	case errors.Is(err, common.ErrAccountLocked):
		return status.Error(codes.PermissionDenied, msgAccountLocked)
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return status.Error(codes.InvalidArgument, msgInvalidResetToken)
	case errors.As(err, &violation):
		return status.Error(codes.InvalidArgument, violation.Reason)
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, msgInvalidSession)
	case errors.Is(err, common.ErrDependencyFailure):
		return status.Error(codes.Unavailable, msgGeneric)
	default:
		return status.Error(codes.Internal, msgGeneric)
	}
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {

	res, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	cookie := res.Session.Cookie.HTTPCookie(res.Session.Token)
	if err := grpc.SetHeader(ctx, metadata.Pairs("set-cookie", cookie.String())); err != nil {
		s.logger.Warn(ctx, "set-cookie header not sent", "error", err)
	}

	return &LoginResponse{
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
		AccountID: res.Account.ID,
		Email:     res.Account.Identity,
		IsAdmin:   res.Account.Privileged,
	}, nil
}

// VerifySession returns the account resolved by accessTokenInterceptor.
func (s *GRPCServer) VerifySession(ctx context.Context, req *VerifySessionRequest) (*VerifySessionResponse, error) {

	a := accountFrom(ctx)
	if a == nil {
		return nil, status.Error(codes.Unauthenticated, msgInvalidSession)
	}

	return &VerifySessionResponse{
		AccountID: a.ID,
		Email:     a.Identity,
		Name:      a.Name,
		Role:      a.Role,
		IsAdmin:   a.Privileged,
	}, nil
}

func (s *GRPCServer) RequestPasswordReset(ctx context.Context, req *RequestPasswordResetRequest) (*MessageResponse, error) {

	if req.Email == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}

	if err := s.reset.RequestReset(ctx, req.Email); err != nil {
		return nil, toStatus(err)
	}

	return &MessageResponse{Message: msgResetRequested}, nil
}

func (s *GRPCServer) ConfirmPasswordReset(ctx context.Context, req *ConfirmPasswordResetRequest) (*MessageResponse, error) {

	if err := s.reset.ConfirmReset(ctx, req.Token, req.NewPassword); err != nil {
		return nil, toStatus(err)
	}

	return &MessageResponse{Message: msgResetDone}, nil
}
