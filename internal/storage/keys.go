package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// thumbnailSuffix replaces the source extension in derived thumbnail keys.
const thumbnailSuffix = "_thumb.jpg"

// ObjectKeyFromURL derives the object key from a stored image URL: the
// path after scheme and host, without the leading slash. For path-style
// URLs, where the host does not name the bucket, a first path segment
// equal to bucket is stripped as well.
//
//	https://bucket.s3.amazonaws.com/captures/123/uuid.jpg -> captures/123/uuid.jpg
//	https://bucket.s3.amazonaws.com/bucket/uuid.jpg       -> bucket/uuid.jpg
//	https://minio.local/bucket/captures/123/uuid.jpg      -> captures/123/uuid.jpg
func ObjectKeyFromURL(rawURL, bucket string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: missing scheme or host in %q", ErrMalformedURL, rawURL)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if bucket != "" && !strings.HasPrefix(u.Hostname(), bucket+".") {
		if rest, ok := strings.CutPrefix(key, bucket+"/"); ok {
			key = rest
		}
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("%w: no object key in %q", ErrMalformedURL, rawURL)
	}
	return key, nil
}

// ThumbnailKey returns the key of the thumbnail derived from a source key.
//
//	captures/123/uuid.png -> captures/123/uuid_thumb.jpg
func ThumbnailKey(sourceKey string) string {
	ext := path.Ext(sourceKey)
	if strings.Contains(ext, "/") {
		ext = ""
	}
	return strings.TrimSuffix(sourceKey, ext) + thumbnailSuffix
}
