package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Loader fetches the bytes behind a remote file reference.
type Loader interface {
	Load(ctx context.Context, fileID string) ([]byte, string, error)
}

type LoaderFunc func(ctx context.Context, fileID string) ([]byte, string, error)

func (f LoaderFunc) Load(ctx context.Context, fileID string) ([]byte, string, error) {
	return f(ctx, fileID)
}

type cachedFile struct {
	data     []byte
	mimeType string
}

// CachedLoader memoizes a Loader by file id. Telegram file ids are stable,
// so a reference photo reused across generations is downloaded once.
type CachedLoader struct {
	next  Loader
	cache *cache.Cache
	ttl   time.Duration
}

func NewCachedLoader(next Loader, ttl time.Duration) *CachedLoader {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CachedLoader{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func (l *CachedLoader) Load(ctx context.Context, fileID string) ([]byte, string, error) {
	if v, ok := l.cache.Get(fileID); ok {
		f := v.(cachedFile)
		return f.data, f.mimeType, nil
	}

	data, mimeType, err := l.next.Load(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	l.cache.Set(fileID, cachedFile{data: data, mimeType: mimeType}, l.ttl)
	return data, mimeType, nil
}

// DetectMime normalizes a declared content type, sniffing the bytes when the
// declaration is missing or generic.
func DetectMime(declared string, data []byte) string {
	mimeType := stripParams(declared)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = stripParams(http.DetectContentType(data))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/png"
	}
	return mimeType
}

// DataURL encodes bytes as data:{mime};base64,{payload}.
func DataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", DetectMime(mimeType, data), base64.StdEncoding.EncodeToString(data))
}

// ParseDataURL splits a data URL. A bare base64 string is accepted and
// reported as image/png.
func ParseDataURL(value string) (mimeType string, base64Data string, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", errors.New("empty data url")
	}

	const prefix = "data:"
	if !strings.HasPrefix(value, prefix) {
		return "image/png", value, nil
	}

	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return "", "", errors.New("invalid data url")
	}

	meta := strings.TrimPrefix(parts[0], prefix)
	mimeType = strings.TrimSpace(strings.Split(meta, ";")[0])
	if mimeType == "" {
		mimeType = "image/png"
	}
	return mimeType, parts[1], nil
}

func stripParams(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}
