package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopFrameRestoresStack(t *testing.T) {
	f := New(0)
	f.Reset()

	f.PushFrame(1, 3, 0, 1)
	require.Len(t, f.Stack, 3)
	f.WriteReg(0, 11)
	f.WriteReg(1, 22)

	f.PushFrame(2, 2, 0, 1)
	f.WriteReg(0, 99)
	require.Len(t, f.Stack, 5)

	frame, ok := f.PopFrame()
	require.True(t, ok)
	require.Equal(t, uint32(2), frame.FuncID)
	require.Len(t, f.Stack, 3)

	require.EqualValues(t, 11, f.ReadReg(0))
	require.EqualValues(t, 22, f.ReadReg(1))
}

func TestPopFrameEmptyReturnsFalse(t *testing.T) {
	f := New(0)
	_, ok := f.PopFrame()
	require.False(t, ok)
}

func TestCurrentFramePanicsWithoutFrame(t *testing.T) {
	f := New(0)
	require.Panics(t, func() { f.CurrentFrame() })
}

func TestPushDefersAndPopAtDepthIsLIFO(t *testing.T) {
	f := New(0)
	f.PushFrame(1, 0, 0, 0) // depth 1

	f.PushDefer(DeferEntry{FuncID: 10})
	f.PushDefer(DeferEntry{FuncID: 20})
	f.PushDefer(DeferEntry{FuncID: 30})

	got := f.PopDefersAt(1)
	require.Len(t, got, 3)
	require.Equal(t, uint32(30), got[0].FuncID)
	require.Equal(t, uint32(20), got[1].FuncID)
	require.Equal(t, uint32(10), got[2].FuncID)
	require.Empty(t, f.DeferStack)
}

func TestPopDefersAtOnlyMatchesExactDepth(t *testing.T) {
	f := New(0)
	f.PushFrame(1, 0, 0, 0) // depth 1
	f.PushDefer(DeferEntry{FuncID: 1})
	f.PushFrame(2, 0, 0, 0) // depth 2
	f.PushDefer(DeferEntry{FuncID: 2})

	got := f.PopDefersAt(2)
	require.Len(t, got, 1)
	require.Equal(t, uint32(2), got[0].FuncID)
	require.Len(t, f.DeferStack, 1) // the depth-1 defer is untouched
}

func TestNewSelectStateStartsUnwoken(t *testing.T) {
	s := NewSelectState([]SelectCase{{Kind: SelectRecv}}, false)
	require.Equal(t, -1, s.WokenIndex)
}

func TestResetClearsEverythingButIdentity(t *testing.T) {
	f := New(5)
	displayID := f.DisplayID
	f.PushFrame(1, 2, 0, 0)
	f.PanicMsg = "boom"

	f.Reset()
	require.Equal(t, uint32(5), f.ID)
	require.Equal(t, displayID, f.DisplayID)
	require.Empty(t, f.Frames)
	require.Empty(t, f.Stack)
	require.Equal(t, "", f.PanicMsg)
	require.Equal(t, Running, f.Status)
}
