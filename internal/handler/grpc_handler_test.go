package handler

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/service"
)

func dialBufconn(t *testing.T, api *testAPI) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryRequestID(), UnaryLogger(zerolog.Nop())))
	RegisterPurchaseRequestServiceServer(srv, NewGRPCHandler(api.requests, zerolog.Nop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	require.NoError(t, err)
	out := &structpb.Struct{}
	err = conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, out)
	return out, err
}

func TestGRPCApprovalFlow(t *testing.T) {
	api := newTestAPI(t)
	api.createRule(t, 1, "0", "", "admin")
	pr := api.createRequest(t, []map[string]any{{"product_id": "X", "quantity": 2, "unit_price": "10"}})
	conn := dialBufconn(t, api)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-user-id", "u-requester", "x-request-id", "req-1")

	var header metadata.MD
	req, err := structpb.NewStruct(map[string]any{"request_id": pr.ID})
	require.NoError(t, err)
	submitted := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, "/"+ServiceName+"/Submit", req, submitted, grpc.Header(&header)))
	assert.Equal(t, []string{"req-1"}, header.Get("x-request-id"))

	approvals := submitted.Fields["approvals"].GetListValue().GetValues()
	require.Len(t, approvals, 1)
	assert.Equal(t, "u-admin", approvals[0].GetStructValue().Fields["approver_id"].GetStringValue())

	pending, err := invoke(t, conn, context.Background(), "ListPendingApprovals", map[string]any{"user_id": "u-admin"})
	require.NoError(t, err)
	assert.Len(t, pending.Fields["pending"].GetListValue().GetValues(), 1)

	adminCtx := metadata.AppendToOutgoingContext(context.Background(), "x-user-id", "u-admin")
	decided, err := invoke(t, conn, adminCtx, "Decide", map[string]any{
		"request_id": pr.ID, "level": 1, "outcome": "approved",
	})
	require.NoError(t, err)
	assert.True(t, decided.Fields["is_fully_approved"].GetBoolValue())

	converted, err := invoke(t, conn, context.Background(), "Convert", map[string]any{
		"request_id": pr.ID, "created_by": "u-buyer",
	})
	require.NoError(t, err)
	order := converted.Fields["purchase_order"].GetStructValue()
	require.NotNil(t, order)
	assert.Equal(t, "sup-1", order.Fields["supplier_id"].GetStringValue())
	assert.Equal(t, "draft", order.Fields["status"].GetStringValue())
}

func TestGRPCErrorCodes(t *testing.T) {
	api := newTestAPI(t)
	pr := api.createRequest(t, nil)
	conn := dialBufconn(t, api)

	_, err := invoke(t, conn, context.Background(), "Submit", map[string]any{"request_id": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = invoke(t, conn, context.Background(), "Submit", map[string]any{"request_id": pr.ID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err), "no applicable rule")

	_, err = invoke(t, conn, context.Background(), "Decide", map[string]any{"request_id": pr.ID, "level": 1, "approver_id": "u", "outcome": "nope"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(t, conn, context.Background(), "Decide", map[string]any{"request_id": pr.ID, "level": 1.5})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestMapErrorToGRPC(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{errors.NotFound("purchase_request", "x"), codes.NotFound},
		{service.ApprovalNotFound(1, "u"), codes.NotFound},
		{errors.InvalidInput("f", "bad"), codes.InvalidArgument},
		{service.InvalidState("draft", "decide"), codes.FailedPrecondition},
		{service.EmptyRequest("x"), codes.FailedPrecondition},
		{errors.New(errors.ErrCodeConflict, "stale"), codes.Aborted},
		{errors.New(errors.ErrCodeInternal, "db down"), codes.Internal},
		{context.DeadlineExceeded, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(mapErrorToGRPC(tt.err)), tt.err.Error())
	}
	assert.NoError(t, mapErrorToGRPC(nil))
}
