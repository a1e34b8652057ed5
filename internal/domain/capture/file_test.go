package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jewelfinder-go/internal/domain/media"
	"jewelfinder-go/internal/platform/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(&logging.LogCfg{
		LogLevel: "error",
		LogDir:   t.TempDir(),
		LogFile:  "test.log",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func TestFilePipeline_Accept(t *testing.T) {
	pipeline := NewFilePipeline(testLogger(t))

	tests := []struct {
		name    string
		source  FileSource
		asset   media.Asset
		wantErr bool
	}{
		{"picked image", SourcePick, media.Asset{Data: []byte("x"), MIME: "image/png"}, false},
		{"picked without mime passes", SourcePick, media.Asset{Data: []byte("x")}, false},
		{"dropped image", SourceDrop, media.Asset{Data: []byte("x"), MIME: "image/jpeg"}, false},
		{"dropped pdf rejected", SourceDrop, media.Asset{Data: []byte("x"), MIME: "application/pdf"}, true},
		{"dropped without mime rejected", SourceDrop, media.Asset{Data: []byte("x")}, true},
		{"empty payload rejected", SourcePick, media.Asset{MIME: "image/png"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pipeline.Accept(tt.source, tt.asset)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.asset, got)
		})
	}
}
