package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest(CmdGet, "foo", nil)
	assert.Equal(t, CmdGet, req.Command)
	assert.Equal(t, "foo", req.Key)
	assert.Nil(t, req.Data)
	assert.Empty(t, req.Flags)
}

func TestRequest_Builders(t *testing.T) {
	req := NewRequest(CmdGet, "foo", nil).
		AddReturnValue().
		AddReturnCAS().
		AddReturnTTL().
		AddTTL(60).
		AddOpaque("op1").
		AddRecache(30).
		AddVivify(120).
		AddQuiet().
		AddBase64Key()

	require.True(t, req.HasFlag(FlagReturnValue))
	require.True(t, req.HasFlag(FlagReturnCAS))
	require.True(t, req.HasFlag(FlagReturnTTL))
	require.True(t, req.HasFlag(FlagQuiet))
	require.True(t, req.HasFlag(FlagBase64Key))

	token, ok := req.Flags.Get(FlagTTL)
	require.True(t, ok)
	assert.Equal(t, "60", token)

	token, ok = req.Flags.Get(FlagOpaque)
	require.True(t, ok)
	assert.Equal(t, "op1", token)

	token, ok = req.Flags.Get(FlagRecache)
	require.True(t, ok)
	assert.Equal(t, "30", token)

	token, ok = req.Flags.Get(FlagVivify)
	require.True(t, ok)
	assert.Equal(t, "120", token)
}

func TestRequest_PreservesFlagOrder(t *testing.T) {
	req := NewRequest(CmdSet, "foo", []byte("bar")).
		AddSize(3).
		AddClientFlag(7).
		AddMode(ModeAdd).
		AddTTL(10)

	var order []FlagType
	for _, f := range req.Flags {
		order = append(order, f.Type)
	}
	assert.Equal(t, []FlagType{FlagSize, FlagClientFlag, FlagMode, FlagTTL}, order)
}

func TestRequest_ArithmeticBuilders(t *testing.T) {
	req := NewRequest(CmdArithmetic, "counter", nil).
		AddMode(ModeIncrement).
		AddDelta(5).
		AddInitialValue(0).
		AddVivify(3600)

	token, ok := req.Flags.Get(FlagDelta)
	require.True(t, ok)
	assert.Equal(t, "5", token)

	token, ok = req.Flags.Get(FlagInitialValue)
	require.True(t, ok)
	assert.Equal(t, "0", token)
}
