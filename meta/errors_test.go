package meta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldCloseConnection(t *testing.T) {
	assert.True(t, ShouldCloseConnection(&ClientError{Message: "bad"}))
	assert.False(t, ShouldCloseConnection(&ServerError{Message: "oom"}))
	assert.True(t, ShouldCloseConnection(&GenericError{Message: "ERROR"}))
	assert.True(t, ShouldCloseConnection(&ParseError{Message: "bad line"}))
	assert.False(t, ShouldCloseConnection(nil))
}

func TestShouldCloseConnection_UnknownError(t *testing.T) {
	assert.True(t, ShouldCloseConnection(errors.New("plain net error")))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("CLIENT_ERROR bad data chunk")
	var clientErr *ClientError
	assert.ErrorAs(t, resp.Error, &clientErr)
	assert.Equal(t, "bad data chunk", clientErr.Message)

	resp = NewErrorResponse("SERVER_ERROR out of memory")
	var serverErr *ServerError
	assert.ErrorAs(t, resp.Error, &serverErr)
	assert.Equal(t, "out of memory", serverErr.Message)

	resp = NewErrorResponse("ERROR")
	var genericErr *GenericError
	assert.ErrorAs(t, resp.Error, &genericErr)
}

func TestParseError_Unwrap(t *testing.T) {
	inner := errors.New("eof")
	pe := &ParseError{Message: "reading", Err: inner}
	assert.ErrorIs(t, pe, inner)
}
