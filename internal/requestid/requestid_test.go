package requestid

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-123")
	assert.Equal(t, "test-123", FromContext(ctx))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	l := Logger(WithRequestID(context.Background(), "req-9"), base)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"request_id":"req-9"`)

	buf.Reset()
	l = Logger(context.Background(), base)
	l.Info().Msg("hello")
	assert.NotContains(t, buf.String(), "request_id")
}
