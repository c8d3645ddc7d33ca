package solr

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/th317erd/mythix-orm-solr/pkg/session"
)

func resetLambdaState() {
	globalLambdaConn = nil
	lambdaOnce = sync.Once{}
}

func TestNewLambdaOptimizedReusesWarmConnection(t *testing.T) {
	resetLambdaState()
	t.Cleanup(resetLambdaState)

	server := httptest.NewServer(&fakeSolr{})
	defer server.Close()

	cfg := *session.DefaultConfig()
	cfg.BaseURL = server.URL

	first, err := NewLambdaOptimized(cfg)
	require.NoError(t, err)
	defer first.Stop()
	assert.True(t, first.Started())

	second, err := NewLambdaOptimized(cfg)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestNewLambdaOptimizedFailedInitNeverReturnsNil(t *testing.T) {
	resetLambdaState()
	t.Cleanup(resetLambdaState)

	cfg := *session.DefaultConfig()
	cfg.BaseURL = "http://\x7f" // control byte, rejected by the URL parser

	_, err := NewLambdaOptimized(cfg)
	require.Error(t, err)

	// The Once has fired; later invocations still get an error, not (nil, nil)
	conn, err := NewLambdaOptimized(cfg)
	assert.Nil(t, conn)
	assert.Error(t, err)
}

func TestIsLambdaEnvironment(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	assert.False(t, IsLambdaEnvironment())

	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "index-writer")
	assert.True(t, IsLambdaEnvironment())
}

func TestGetLambdaMemoryMB(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE", "512")
	assert.Equal(t, 512, GetLambdaMemoryMB())

	t.Setenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE", "")
	assert.Equal(t, 0, GetLambdaMemoryMB())
}

func TestOperationContextBuffersDeadline(t *testing.T) {
	lc := &LambdaConnection{}

	deadline := time.Now().Add(10 * time.Second)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	opCtx, opCancel := lc.OperationContext(ctx)
	defer opCancel()

	buffered, ok := opCtx.Deadline()
	require.True(t, ok)
	assert.True(t, buffered.Before(deadline))

	// A deadline already inside the buffer is kept as-is
	tight, tightCancel := context.WithDeadline(context.Background(), time.Now().Add(200*time.Millisecond))
	defer tightCancel()
	opCtx, opCancel = lc.OperationContext(tight)
	defer opCancel()
	kept, ok := opCtx.Deadline()
	require.True(t, ok)
	tightDeadline, _ := tight.Deadline()
	assert.Equal(t, tightDeadline, kept)
}

func TestOperationContextWithoutDeadline(t *testing.T) {
	lc := &LambdaConnection{}
	opCtx, cancel := lc.OperationContext(context.Background())
	defer cancel()
	_, ok := opCtx.Deadline()
	assert.False(t, ok)
}

func TestRequestID(t *testing.T) {
	lc := &LambdaConnection{}
	assert.Empty(t, lc.RequestID(context.Background()))

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{
		AwsRequestID: "req-123",
	})
	assert.Equal(t, "req-123", lc.RequestID(ctx))
}
