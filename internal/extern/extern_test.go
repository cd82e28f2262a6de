package extern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vo-lang/vort/internal/gc"
)

func TestContextArgAndRetRoundTrip(t *testing.T) {
	g := gc.New(1.0, 1<<20)
	stack := make([]uint64, 8)
	stack[0] = 41
	stack[1] = 1 // true

	ctx := NewContext(g, stack, 0, 2, 4)
	require.EqualValues(t, 41, ctx.ArgI64(0))
	require.True(t, ctx.ArgBool(1))

	ctx.RetI64(0, 99)
	require.EqualValues(t, 99, stack[4])
}

func TestContextFloatRoundTrip(t *testing.T) {
	g := gc.New(1.0, 1<<20)
	stack := make([]uint64, 4)
	ctx := NewContext(g, stack, 0, 0, 0)
	ctx.RetF64(0, 3.25)
	require.InDelta(t, 3.25, ctx.ArgF64(0), 0.0001)
}

func TestContextPanicRecordsMessage(t *testing.T) {
	ctx := NewContext(nil, nil, 0, 0, 0)
	ctx.Panic("bad arg %d", 3)
	require.Equal(t, "bad arg 3", ctx.PanicMessage())
}

func TestRegistryBindAndCall(t *testing.T) {
	r := NewRegistry()
	r.Register("add", func(ctx *Context) Result {
		ctx.RetI64(0, ctx.ArgI64(0)+ctx.ArgI64(1))
		return ResultOk
	})

	missing := r.Bind([]string{"add"})
	require.Empty(t, missing)

	stack := []uint64{2, 3, 0}
	ctx := NewContext(nil, stack, 0, 2, 2)
	res := r.Call(0, ctx)
	require.Equal(t, ResultOk, res)
	require.EqualValues(t, 5, stack[2])
}

func TestRegistryBindReportsMissing(t *testing.T) {
	r := NewRegistry()
	missing := r.Bind([]string{"not_registered"})
	require.Equal(t, []string{"not_registered"}, missing)
}

func TestRegistryCallUnboundPanics(t *testing.T) {
	r := NewRegistry()
	ctx := NewContext(nil, nil, 0, 0, 0)
	res := r.Call(0, ctx)
	require.Equal(t, ResultPanic, res)
	require.NotEmpty(t, ctx.PanicMessage())
}

func TestParseManifestBasic(t *testing.T) {
	src := `
name = "mylib"
version = "0.1.0"
abi_version = 1

[[library]]
platform = "linux"
path = "libmylib.so"

[[library]]
platform = "darwin"
path = "libmylib.dylib"
`
	m, err := ParseManifest(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, "mylib", m.Name)
	require.EqualValues(t, 1, m.AbiVer)
	require.Len(t, m.Libs, 2)
	require.Equal(t, "linux", m.Libs[0].Platform)
	require.Equal(t, "libmylib.so", m.Libs[0].Path)
}

func TestParseManifestRequiresName(t *testing.T) {
	_, err := ParseManifest(strings.NewReader("version = \"0.1\"\n"))
	require.Error(t, err)
}
