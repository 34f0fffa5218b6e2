package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmslite/drivetemp/internal/config"
)

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

	src := NewFileSource(path)
	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.Equal(t, "file:"+path, src.Name())

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.json")).Fetch(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource("stdin", strings.NewReader(`[{"type":"Fan"}]`))
	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"Fan"}]`, string(data))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewReaderSource("stdin", strings.NewReader("")).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromConfig(t *testing.T) {
	stdin := strings.NewReader("[]")

	tests := []struct {
		name string
		cfg  config.SourceConfig
		want string
	}{
		{"stdin kind", config.SourceConfig{Kind: "stdin"}, "stdin"},
		{"dash path", config.SourceConfig{Kind: "file", Path: "-"}, "stdin"},
		{"file", config.SourceConfig{Kind: "file", Path: "/tmp/x.json"}, "file:/tmp/x.json"},
		{"ssh", config.SourceConfig{Kind: "ssh", SSH: config.SSHConfig{Host: "appliance", Port: 22}}, "ssh:appliance:22"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := FromConfig(tt.cfg, stdin)
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Name())
		})
	}

	_, err := FromConfig(config.SourceConfig{Kind: "ftp"}, stdin)
	assert.Error(t, err)
}
