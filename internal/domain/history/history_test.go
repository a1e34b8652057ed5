package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jewelfinder-go/internal/domain/dispatch"
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

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "data", "history.db"), testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_AppendAndRecent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	score := 0.9
	require.NoError(t, repo.Append(ctx, "s1", dispatch.EndpointText, "gold ring",
		dispatch.Success([]dispatch.ResultItem{
			{ID: "a", ImagePath: "/a.jpg", Score: &score},
		}, "")))
	require.NoError(t, repo.Append(ctx, "s1", dispatch.EndpointImage, "",
		dispatch.Fail(dispatch.Failure{Class: dispatch.FailureTimeout, Message: "Search failed. Request timed out (Server is busy loading models)."})))

	records, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// most recent first
	assert.Equal(t, "image", records[0].Endpoint)
	assert.Equal(t, "failure", records[0].Outcome)
	assert.Contains(t, records[0].Message, "timed out")

	assert.Equal(t, "text", records[1].Endpoint)
	assert.Equal(t, "success", records[1].Outcome)
	assert.Equal(t, 1, records[1].ResultCount)
	assert.Contains(t, string(records[1].Results), `"image_path":"/a.jpg"`)
}

func TestRepository_RecentLimit(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, "s1", dispatch.EndpointText, "q",
			dispatch.Success(nil, "")))
	}

	records, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRepository_TruncatesStoredResults(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	items := make([]dispatch.ResultItem, 25)
	for i := range items {
		items[i] = dispatch.ResultItem{ID: "x", ImagePath: "/x.jpg"}
	}
	require.NoError(t, repo.Append(ctx, "s1", dispatch.EndpointText, "q",
		dispatch.Success(items, "")))

	records, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 25, records[0].ResultCount)

	var stored []dispatch.ResultItem
	require.NoError(t, sonic.Unmarshal(records[0].Results, &stored))
	assert.Len(t, stored, 10)
}
