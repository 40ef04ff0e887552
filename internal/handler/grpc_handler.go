package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/middleware"
	"github.com/pesio-ai/be-purchase-requests/internal/service"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "purchasing.v1.PurchaseRequestService"

// PurchaseRequestServiceServer is the server API. Messages are
// google.protobuf.Struct documents carrying the same JSON shapes as the HTTP
// API.
type PurchaseRequestServiceServer interface {
	Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Decide(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Convert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListPendingApprovals(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type methodCall func(srv PurchaseRequestServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call methodCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(PurchaseRequestServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PurchaseRequestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Submit", PurchaseRequestServiceServer.Submit),
		unaryMethod("Decide", PurchaseRequestServiceServer.Decide),
		unaryMethod("Convert", PurchaseRequestServiceServer.Convert),
		unaryMethod("ListPendingApprovals", PurchaseRequestServiceServer.ListPendingApprovals),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "purchasing/v1/purchase_requests.proto",
}

// RegisterPurchaseRequestServiceServer registers srv on s.
func RegisterPurchaseRequestServiceServer(s grpc.ServiceRegistrar, srv PurchaseRequestServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// GRPCHandler implements the PurchaseRequestService gRPC interface
type GRPCHandler struct {
	requests *service.PurchaseRequestService
	logger   zerolog.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(requests *service.PurchaseRequestService, logger zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{
		requests: requests,
		logger:   logger.With().Str("handler", "grpc").Logger(),
	}
}

// userID returns the x-user-id metadata value, or "".
func userID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("x-user-id"); len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// Submit moves a draft into approval.
func (h *GRPCHandler) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		RequestID string `json:"request_id"`
		Actor     string `json:"actor"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.Actor == "" {
		in.Actor = userID(ctx)
	}

	h.logger.Info().Str("request_id", in.RequestID).Msg("gRPC Submit called")

	result, err := h.requests.Submit(ctx, in.RequestID, in.Actor)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(result)
}

// Decide records one approver's outcome.
func (h *GRPCHandler) Decide(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		RequestID string `json:"request_id"`
		service.DecideInput
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.ApproverID == "" {
		in.ApproverID = userID(ctx)
	}

	h.logger.Info().
		Str("request_id", in.RequestID).
		Int("level", in.Level).
		Str("outcome", in.Outcome).
		Msg("gRPC Decide called")

	result, err := h.requests.Decide(ctx, in.RequestID, &in.DecideInput)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(result)
}

// Convert turns an approved request into a draft purchase order.
func (h *GRPCHandler) Convert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		RequestID string `json:"request_id"`
		service.ConvertInput
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.CreatedBy == "" {
		in.CreatedBy = userID(ctx)
	}

	h.logger.Info().Str("request_id", in.RequestID).Msg("gRPC Convert called")

	result, err := h.requests.ConvertToOrder(ctx, in.RequestID, &in.ConvertInput)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(result)
}

// ListPendingApprovals returns the tasks a user can act on.
func (h *GRPCHandler) ListPendingApprovals(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		UserID string `json:"user_id"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.UserID == "" {
		in.UserID = userID(ctx)
	}

	pending, err := h.requests.ListPendingApprovalsForUser(ctx, in.UserID)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return toStruct(map[string]any{"pending": pending})
}

// ── Codec ─────────────────────────────────────────────────────────────────────

func fromStruct(s *structpb.Struct, dst any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid request message")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request message: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func mapErrorToGRPC(err error) error {
	if err == nil {
		return nil
	}

	var appErr *errors.Error
	if !errors.As(err, &appErr) {
		return status.Error(codes.Internal, "internal error")
	}

	switch appErr.Code {
	case errors.ErrCodeNotFound, errors.ErrCodeApprovalNotFound:
		return status.Error(codes.NotFound, appErr.Error())
	case errors.ErrCodeInvalidInput:
		return status.Error(codes.InvalidArgument, appErr.Error())
	case errors.ErrCodeInvalidState, errors.ErrCodeNoApplicableRule,
		errors.ErrCodeNoAvailableApprover, errors.ErrCodeEmptyRequest:
		return status.Error(codes.FailedPrecondition, appErr.Error())
	case errors.ErrCodeConflict:
		return status.Error(codes.Aborted, appErr.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// ── Interceptors ──────────────────────────────────────────────────────────────

// UnaryRequestID propagates x-request-id metadata into the context, assigning
// one when absent.
func UnaryRequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs("x-request-id", id))
		return handler(middleware.WithRequestID(ctx, id), req)
	}
}

// UnaryLogger logs one line per call.
func UnaryLogger(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		event := log.Info()
		if code == codes.Internal || code == codes.Unknown {
			event = log.Error().Err(err)
		}
		event.
			Str("request_id", middleware.RequestIDFromContext(ctx)).
			Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC request")
		return resp, err
	}
}
