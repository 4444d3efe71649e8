package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "taskmanager.account.AccountService"

	loginMethod                = "/" + ServiceName + "/Login"
	verifySessionMethod        = "/" + ServiceName + "/VerifySession"
	requestPasswordResetMethod = "/" + ServiceName + "/RequestPasswordReset"
	confirmPasswordResetMethod = "/" + ServiceName + "/ConfirmPasswordReset"
)

// AccountServiceServer is the server side of the account service.
type AccountServiceServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	VerifySession(context.Context, *VerifySessionRequest) (*VerifySessionResponse, error)
	RequestPasswordReset(context.Context, *RequestPasswordResetRequest) (*MessageResponse, error)
	ConfirmPasswordReset(context.Context, *ConfirmPasswordResetRequest) (*MessageResponse, error)
}

func unaryHandler[Req any, Resp any](method string, call func(AccountServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AccountServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AccountServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AccountServiceDesc describes the service for grpc.Server.RegisterService.
var AccountServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler(loginMethod, AccountServiceServer.Login)},
		{MethodName: "VerifySession", Handler: unaryHandler(verifySessionMethod, AccountServiceServer.VerifySession)},
		{MethodName: "RequestPasswordReset", Handler: unaryHandler(requestPasswordResetMethod, AccountServiceServer.RequestPasswordReset)},
		{MethodName: "ConfirmPasswordReset", Handler: unaryHandler(confirmPasswordResetMethod, AccountServiceServer.ConfirmPasswordReset)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskmanager/account.json",
}

func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&AccountServiceDesc, srv)
}

// AccountServiceClient is the client used by sibling services.
type AccountServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAccountServiceClient(cc grpc.ClientConnInterface) *AccountServiceClient {
	return &AccountServiceClient{cc: cc}
}

func (c *AccountServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *AccountServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	out := new(LoginResponse)
	if err := c.invoke(ctx, loginMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifySession checks the session token carried in ctx's outgoing
// metadata (see WithSessionToken).
func (c *AccountServiceClient) VerifySession(ctx context.Context, opts ...grpc.CallOption) (*VerifySessionResponse, error) {
	out := new(VerifySessionResponse)
	if err := c.invoke(ctx, verifySessionMethod, &VerifySessionRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AccountServiceClient) RequestPasswordReset(ctx context.Context, in *RequestPasswordResetRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	out := new(MessageResponse)
	if err := c.invoke(ctx, requestPasswordResetMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AccountServiceClient) ConfirmPasswordReset(ctx context.Context, in *ConfirmPasswordResetRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	out := new(MessageResponse)
	if err := c.invoke(ctx, confirmPasswordResetMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
