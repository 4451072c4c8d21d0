package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))
	//nolint:staticcheck
	assert.Same(t, Default(), FromContext(nil))

	var buf bytes.Buffer
	scoped := slog.New(slog.NewTextHandler(&buf, nil)).With("user_id", "u1")

	ctx := WithContext(context.Background(), scoped)
	FromContext(ctx).Info("role changed", "target_id", "u2")

	assert.Contains(t, buf.String(), "user_id=u1")
	assert.Contains(t, buf.String(), "target_id=u2")
}

func TestSetDefault_IgnoresNil(t *testing.T) {
	before := Default()
	t.Cleanup(func() { SetDefault(before) })

	SetDefault(nil)
	assert.Same(t, before, Default())

	var buf bytes.Buffer
	SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	With("gate", "admin").Warn("authorization denied")

	assert.Contains(t, buf.String(), `"gate":"admin"`)
	assert.Contains(t, buf.String(), `"msg":"authorization denied"`)
}
