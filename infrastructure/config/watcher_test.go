package config

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainconfig "mindboard/domain/config"
)

func TestWatcherReloadsEngineSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindboard.yaml")
	writeFile(t, path, "environment: test\nengine:\n  historyLimit: 10\n")

	initial, err := readEngine(path)
	require.NoError(t, err)
	require.Equal(t, 10, initial.HistoryLimit)

	w, err := NewWatcher(path, initial, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	var calls atomic.Int32
	w.OnChange(func(*domainconfig.DomainConfig) { calls.Add(1) })
	w.Start()
	defer w.Stop()

	writeFile(t, path, "environment: test\nengine:\n  historyLimit: 42\n  rowSpacing: 90\n")
	require.Eventually(t, func() bool {
		return w.Current().HistoryLimit == 42
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 90.0, w.Current().RowSpacing)
	assert.Equal(t, 350.0, w.Current().ColumnSpacing)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestWatcherKeepsConfigOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindboard.yaml")
	writeFile(t, path, "engine:\n  historyLimit: 10\n")

	initial, err := readEngine(path)
	require.NoError(t, err)
	w, err := NewWatcher(path, initial, nil)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	w.Start()
	defer w.Stop()

	writeFile(t, path, "engine:\n  historyLimit: -1\n")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 10, w.Current().HistoryLimit)

	writeFile(t, path, "engine: [not, a, map\n")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 10, w.Current().HistoryLimit)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindboard.yaml")
	writeFile(t, path, "")

	w, err := NewWatcher(path, nil, nil)
	require.NoError(t, err)
	w.Start()
	w.Stop()
	w.Stop()
	assert.Equal(t, domainconfig.DefaultDomainConfig(), w.Current())
}
