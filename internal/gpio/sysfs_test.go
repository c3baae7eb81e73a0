//go:build linux

package gpio

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSysfs lays out an already exported line under a temp dir. Regular
// files never report POLLPRI, so the poll loop blocks until Close wakes it.
func fakeSysfs(t *testing.T, offset int, value string) (string, string) {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, "gpio"+strconv.Itoa(offset))
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range map[string]string{
		"direction": "",
		"edge":      "",
		"value":     value,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	for _, name := range []string{"export", "unexport"} {
		require.NoError(t, os.WriteFile(filepath.Join(base, name), nil, 0644))
	}
	return base, dir
}

func TestSysfsOpenConfiguresLine(t *testing.T) {
	base, dir := fakeSysfs(t, 23, "1\n")
	o := &SysfsOpener{Base: base}

	l, err := o.Open(23)
	require.NoError(t, err)

	direction, _ := os.ReadFile(filepath.Join(dir, "direction"))
	edge, _ := os.ReadFile(filepath.Join(dir, "edge"))
	assert.Equal(t, "in", string(direction))
	assert.Equal(t, "both", string(edge))

	v, err := l.Level()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 23, l.Offset())

	done := make(chan error, 1)
	go func() { done <- l.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake the poll loop")
	}

	unexported, _ := os.ReadFile(filepath.Join(base, "unexport"))
	assert.Equal(t, "23", string(unexported))

	_, ok := <-l.Edges()
	assert.False(t, ok)
	require.NoError(t, l.Close(), "second close is a no-op")
}

func TestSysfsLevelRejectsGarbage(t *testing.T) {
	base, dir := fakeSysfs(t, 24, "0\n")
	o := &SysfsOpener{Base: base}

	l, err := o.Open(24)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "value"), []byte("x\n"), 0644))
	_, err = l.Level()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown value")
}

func TestSysfsOpenMissingLineUnexports(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "export"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "unexport"), nil, 0644))
	o := &SysfsOpener{Base: base}

	_, err := o.Open(17)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 17")

	exported, _ := os.ReadFile(filepath.Join(base, "export"))
	unexported, _ := os.ReadFile(filepath.Join(base, "unexport"))
	assert.Equal(t, "17", string(exported))
	assert.Equal(t, "17", string(unexported))
}
