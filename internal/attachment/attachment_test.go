package attachment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestCachedLoader(t *testing.T) {
	ctx := context.Background()
	calls := 0
	inner := LoaderFunc(func(ctx context.Context, fileID string) ([]byte, string, error) {
		calls++
		if fileID == "broken" {
			return nil, "", errors.New("boom")
		}
		return []byte("bytes-" + fileID), "image/jpeg", nil
	})

	l := NewCachedLoader(inner, time.Minute)

	t.Run("first load hits the inner loader", func(t *testing.T) {
		data, mimeType, err := l.Load(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("bytes-a"), data)
		assert.Equal(t, "image/jpeg", mimeType)
		assert.Equal(t, 1, calls)
	})

	t.Run("second load is served from cache", func(t *testing.T) {
		data, _, err := l.Load(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("bytes-a"), data)
		assert.Equal(t, 1, calls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		_, _, err := l.Load(ctx, "broken")
		require.Error(t, err)
		_, _, err = l.Load(ctx, "broken")
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})
}

func TestDetectMime(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectMime("image/jpeg; charset=binary", nil))
	assert.Equal(t, "image/png", DetectMime("", pngHeader))
	assert.Equal(t, "image/png", DetectMime("application/octet-stream", pngHeader))
}

func TestDataURLRoundTrip(t *testing.T) {
	url := DataURL("image/webp", []byte("abc"))
	assert.Equal(t, "data:image/webp;base64,YWJj", url)

	mimeType, data, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mimeType)
	assert.Equal(t, "YWJj", data)
}

func TestDataURLIsDeterministic(t *testing.T) {
	assert.Equal(t, DataURL("", pngHeader), DataURL("", pngHeader))
}

func TestParseDataURL(t *testing.T) {
	mimeType, data, err := ParseDataURL("iVBORw0KGgo=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, "iVBORw0KGgo=", data)

	_, _, err = ParseDataURL("   ")
	assert.Error(t, err)

	_, _, err = ParseDataURL("data:image/png;base64")
	assert.Error(t, err)
}
