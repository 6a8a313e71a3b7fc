// Package jwtgrpc adapts a jwttai.Interceptor to gRPC servers.
//
// The bearer token is read from the "authorization" metadata key and the
// transport counts as secure when the peer connected over TLS:
//
//	interceptor, _ := jwttai.New()
//	_ = interceptor.Initialize(ctx, cfg)
//
//	tai, _ := jwtgrpc.New(interceptor, jwtgrpc.WithExcludedMethods("/grpc.health.v1.Health/Check"))
//	server := grpc.NewServer(
//	    grpc.Creds(credentials.NewTLS(tlsConfig)),
//	    grpc.UnaryInterceptor(tai.UnaryServerInterceptor()),
//	    grpc.StreamInterceptor(tai.StreamServerInterceptor()),
//	)
package jwtgrpc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	jwttai "github.com/cicsdev/go-jwt-tai"
	"github.com/cicsdev/go-jwt-tai/core"
)

// ErrorHandler turns a rejection into the error returned to the client.
// err is always a *jwttai.RejectedError.
type ErrorHandler func(err error) error

// JWTInterceptor provides trust association for gRPC servers.
type JWTInterceptor struct {
	interceptor     *jwttai.Interceptor
	errorHandler    ErrorHandler
	excludedMethods map[string]bool
	isSecure        func(ctx context.Context) bool
	logger          jwttai.Logger
}

// New wraps interceptor for gRPC.
func New(interceptor *jwttai.Interceptor, opts ...Option) (*JWTInterceptor, error) {
	if interceptor == nil {
		return nil, errors.New("interceptor cannot be nil")
	}

	i := &JWTInterceptor{
		interceptor:     interceptor,
		errorHandler:    DefaultErrorHandler,
		excludedMethods: make(map[string]bool),
		isSecure:        PeerTLS,
	}

	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}

	return i, nil
}

// UnaryServerInterceptor returns a grpc.UnaryServerInterceptor that
// establishes trust before calling the handler.
func (i *JWTInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if i.excludedMethods[info.FullMethod] {
			i.debug("skipping trust association for excluded method", "method", info.FullMethod)
			return handler(ctx, req)
		}

		ctx, err := i.establishTrust(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a grpc.StreamServerInterceptor that
// establishes trust before calling the handler.
func (i *JWTInterceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if i.excludedMethods[info.FullMethod] {
			i.debug("skipping trust association for excluded method", "method", info.FullMethod)
			return handler(srv, ss)
		}

		ctx, err := i.establishTrust(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}

		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func (i *JWTInterceptor) establishTrust(ctx context.Context, method string) (context.Context, error) {
	verdict := i.interceptor.Evaluate(ctx, &metadataRequest{ctx: ctx, secure: i.isSecure})

	switch verdict.Outcome {
	case core.OutcomeAuthenticated:
		i.debug("trust established, setting identity in context", "method", method, "identity", verdict.Identity)
		return core.WithVerdict(ctx, verdict), nil
	case core.OutcomeRejected:
		if i.logger != nil {
			i.logger.Warn("bearer token rejected", "method", method, "failure", verdict.Failure.String())
		}
		return ctx, i.errorHandler(&jwttai.RejectedError{Verdict: verdict})
	default:
		return ctx, nil
	}
}

func (i *JWTInterceptor) debug(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Debug(msg, args...)
	}
}

// DefaultErrorHandler maps token failures to codes.Unauthenticated and
// verification capability failures to codes.Internal.
func DefaultErrorHandler(err error) error {
	code, response := jwttai.NewErrorResponse(err)
	if code == http.StatusUnauthorized {
		return status.Errorf(codes.Unauthenticated, "%s: %s", response.Error, response.ErrorCode)
	}
	return status.Errorf(codes.Internal, "%s: %s", response.Error, response.ErrorCode)
}

// PeerTLS reports whether the peer in ctx connected over TLS.
func PeerTLS(ctx context.Context) bool {
	p, ok := peer.FromContext(ctx)
	if !ok || p.AuthInfo == nil {
		return false
	}
	switch p.AuthInfo.(type) {
	case credentials.TLSInfo, *credentials.TLSInfo:
		return true
	default:
		return false
	}
}

// metadataRequest adapts incoming gRPC metadata to core.Request.
type metadataRequest struct {
	ctx    context.Context
	secure func(ctx context.Context) bool
}

func (r *metadataRequest) IsSecure() bool {
	return r.secure(r.ctx)
}

func (r *metadataRequest) Header(name string) string {
	md, ok := metadata.FromIncomingContext(r.ctx)
	if !ok {
		return ""
	}
	values := md.Get(strings.ToLower(name))
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context with the identity.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
