package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetOperationID(ctx))
	assert.Empty(t, GetUserID(ctx))

	ctx = WithOperationID(ctx, "op-1")
	ctx = WithUserID(ctx, "u-42")

	assert.Equal(t, "op-1", GetOperationID(ctx))
	assert.Equal(t, "u-42", GetUserID(ctx))
}
