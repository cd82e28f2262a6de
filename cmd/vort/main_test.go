package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vo-lang/vort/internal/extern"
)

func TestExitCodeForClassifiesLoadErrors(t *testing.T) {
	require.Equal(t, 0, exitCodeFor(nil))
	require.Equal(t, int(exitLoadError), exitCodeFor(&loadError{errors.New("bad magic")}))
	require.Equal(t, int(exitRuntimePanic), exitCodeFor(errors.New("index out of bounds")))
}

func TestExitCodeForUnwrapsLoadError(t *testing.T) {
	wrapped := fmt.Errorf("startup: %w", &loadError{errors.New("inner")})
	require.Equal(t, int(exitLoadError), exitCodeFor(wrapped))
}

func TestLoadExtensionsTolerantOfMissingDir(t *testing.T) {
	reg := extern.NewRegistry()
	err := loadExtensions(reg, filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
}

func TestLoadExtensionsNoManifestsIsNoop(t *testing.T) {
	reg := extern.NewRegistry()
	err := loadExtensions(reg, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 0, reg.Len())
}
