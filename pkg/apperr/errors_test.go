package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Validation("recommend", "missing field %q", "schema"))

	assert.True(t, IsValidation(err))
	assert.False(t, IsConflict(err))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCompressionErrorKeepsBothErrors(t *testing.T) {
	original := errors.New("ORA-01652: unable to extend temp segment")
	rollback := errors.New("ORA-00054: resource busy")
	err := &Error{Kind: KindCompression, Schema: "SALES", Table: "ORDERS", Step: "COMPRESS_TABLE", Err: original, RollbackErr: rollback}

	assert.ErrorIs(t, err, ErrCompression)
	assert.ErrorIs(t, err, original)
	assert.ErrorIs(t, err, rollback)
	assert.Contains(t, err.Error(), "rollback failed")
	assert.Contains(t, err.Error(), "SALES.ORDERS")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Resource("acquire", errors.New("pool exhausted"))))
	assert.True(t, IsRetryable(DataAccess("list", errors.New("connection reset"), true)))
	assert.False(t, IsRetryable(DataAccess("list", errors.New("bad column"), false)))
	assert.False(t, IsRetryable(Validation("x", "bad")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestPublicHidesDatabaseDetail(t *testing.T) {
	detail := DataAccess("listTables", errors.New("ORA-00942: table or view SYS.SECRET_TABLE does not exist"), false)

	pub := Public(context.Background(), nil, detail)
	require.NotNil(t, pub)

	assert.NotEmpty(t, pub.Reference)
	assert.Equal(t, KindDataAccess, pub.Kind)
	assert.False(t, strings.Contains(pub.Error(), "SECRET_TABLE"))
}

func TestPublicKeepsValidationMessage(t *testing.T) {
	pub := Public(context.Background(), nil, Validation("execute", "invalid identifier %q", "a;b"))

	assert.Contains(t, pub.Message, "invalid identifier")
	assert.Nil(t, Public(context.Background(), nil, nil))
}
