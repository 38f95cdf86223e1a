package xerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestIsMatchesByCode(t *testing.T) {
	err := InvalidParameter("steps must be at least 1, got %d", 0)

	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.NotErrorIs(t, err, ErrInvalidModelState)
	assert.NotErrorIs(t, err, ErrDomain)

	wrapped := fmt.Errorf("price request: %w", err)
	assert.ErrorIs(t, wrapped, ErrInvalidParameter)

	assert.ErrorIs(t, InvalidModelState("p=%v", 1.2), ErrInvalidModelState)
	assert.ErrorIs(t, Domain("p=%v", 0), ErrDomain)
	assert.ErrorIs(t, InvalidOptionType("BINARY"), ErrInvalidOptionType)
}

func TestErrorMessage(t *testing.T) {
	err := InvalidOptionType("BINARY")
	assert.Equal(t, `[InvalidArg] 400004: invalid option type: supported types: CALL, PUT, got "BINARY"`, err.Error())

	cause := errors.New("disk full")
	assert.Contains(t, WrapInternal(cause, "write cache").Error(), "(Cause: disk full)")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternal, "noop"))

	base := Domain("p=%v", 1.5)
	wrapped := Wrap(base, ErrInternal, "monte carlo trial")
	require.NotNil(t, wrapped)
	assert.Equal(t, CodeDomain, wrapped.Code)
	assert.Equal(t, ErrInvalidArg, wrapped.Type)
	assert.ErrorIs(t, wrapped, ErrDomain)
	assert.Same(t, base, errors.Unwrap(wrapped))

	plain := WrapInternal(errors.New("boom"), "render")
	assert.Equal(t, ErrInternal, plain.Type)
	assert.Equal(t, CodeInternal, plain.Code)
	assert.NotErrorIs(t, plain, ErrDomain)

	input := Wrap(errors.New("unexpected EOF"), ErrInvalidArg, "decode")
	assert.ErrorIs(t, input, ErrInvalidInput)
}

func TestInvalidInput(t *testing.T) {
	cause := errors.New("invalid character 'x'")
	err := InvalidInput(cause, "line %d", 3)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.Equal(t, "[InvalidArg] 400002: invalid input: line 3 (Cause: invalid character 'x')", err.Error())
}

func TestAborted(t *testing.T) {
	canceled := Aborted(context.Canceled)
	assert.Equal(t, ErrCanceled, canceled.Type)
	assert.Equal(t, CodeCanceled, canceled.Code)
	assert.ErrorIs(t, canceled, context.Canceled)
	assert.Equal(t, 499, canceled.HTTPStatus())
	assert.Equal(t, codes.Canceled, canceled.GRPCCode())

	deadline := Aborted(fmt.Errorf("batch: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrDeadlineExceeded, deadline.Type)
	assert.ErrorIs(t, deadline, context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, deadline.HTTPStatus())
	assert.Equal(t, codes.DeadlineExceeded, deadline.GRPCCode())
}

func TestFromError(t *testing.T) {
	_, ok := FromError(nil)
	assert.False(t, ok)

	_, ok = FromError(errors.New("plain"))
	assert.False(t, ok)

	e, ok := FromError(fmt.Errorf("ctx: %w", InvalidParameter("spot")))
	require.True(t, ok)
	assert.Equal(t, CodeInvalidParameter, e.Code)
}

func TestProtocolMapping(t *testing.T) {
	err := InvalidModelState("p out of range")
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Equal(t, codes.InvalidArgument, err.GRPCCode())
	assert.Equal(t, codes.InvalidArgument, err.ToGRPCStatus().Code())
	assert.Equal(t, "invalid model state: p out of range", err.ToGRPCStatus().Message())

	internal := WrapInternal(errors.New("cache"), "render")
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus())
	assert.Equal(t, codes.Internal, internal.GRPCCode())
}

func TestWithContext(t *testing.T) {
	err := InvalidParameter("spot=%v", -1).WithContext("method", "binomial").WithContext("index", 2)
	assert.Equal(t, "binomial", err.Context["method"])
	assert.Equal(t, 2, err.Context["index"])
	assert.Equal(t, "spot=-1", err.Detail)
	assert.NotEmpty(t, err.Stack)
	assert.Equal(t, "Unknown", ErrorType(42).String())
}
