// internal/imagestore/resolver.go
package imagestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	commonhttp "stylist-pipeline/internal/common/http"
)

const maxImageBytes = 20 << 20 // refuse anything above 20 MiB

var (
	ErrUnsupportedHandle = errors.New("UNSUPPORTED_IMAGE_HANDLE")
	ErrFetchFailed       = errors.New("IMAGE_FETCH_FAILED")
)

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// ObjectFetcher is the slice of the S3 client the resolver needs.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// ResolvedImage is raw image bytes plus the MIME type they arrived with.
type ResolvedImage struct {
	Data     []byte
	MIMEType string
}

// Resolver turns image handles (s3://, http(s)://, data: URLs and bare
// bucket keys) into bytes. It never interprets the image content.
type Resolver struct {
	s3            ObjectFetcher
	httpClient    *commonhttp.Client
	defaultBucket string
	logger        Logger
}

func NewResolver(s3 ObjectFetcher, httpClient *commonhttp.Client, defaultBucket string, log Logger) *Resolver {
	return &Resolver{
		s3:            s3,
		httpClient:    httpClient,
		defaultBucket: defaultBucket,
		logger:        log.With(map[string]interface{}{"component": "imagestore"}),
	}
}

// Resolve fetches the image behind a handle.
func (r *Resolver) Resolve(ctx context.Context, handle string) (*ResolvedImage, error) {
	handle = strings.TrimSpace(handle)

	switch {
	case handle == "":
		return nil, fmt.Errorf("%w: empty handle", ErrUnsupportedHandle)
	case strings.HasPrefix(handle, "data:"):
		return decodeDataURL(handle)
	case strings.HasPrefix(handle, "s3://"):
		bucket, key, err := splitS3Handle(handle)
		if err != nil {
			return nil, err
		}
		return r.fetchS3(ctx, bucket, key)
	case strings.HasPrefix(handle, "http://"), strings.HasPrefix(handle, "https://"):
		return r.fetchHTTP(ctx, handle)
	default:
		if r.defaultBucket == "" {
			return nil, fmt.Errorf("%w: bare key %q without a default bucket", ErrUnsupportedHandle, handle)
		}
		return r.fetchS3(ctx, r.defaultBucket, handle)
	}
}

func (r *Resolver) fetchS3(ctx context.Context, bucket, key string) (*ResolvedImage, error) {
	if r.s3 == nil {
		return nil, fmt.Errorf("%w: no object store configured", ErrUnsupportedHandle)
	}

	data, err := r.s3.FetchObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("%w: s3://%s/%s: %v", ErrFetchFailed, bucket, key, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: s3://%s/%s exceeds size limit", ErrFetchFailed, bucket, key)
	}

	r.logger.Debug("resolved s3 handle", map[string]interface{}{
		"bucket": bucket,
		"key":    key,
		"bytes":  len(data),
	})
	return &ResolvedImage{Data: data, MIMEType: http.DetectContentType(data)}, nil
}

func (r *Resolver) fetchHTTP(ctx context.Context, url string) (*ResolvedImage, error) {
	resp, err := r.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetchFailed, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: %s exceeds size limit", ErrFetchFailed, url)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}

	r.logger.Debug("resolved http handle", map[string]interface{}{
		"url":   url,
		"bytes": len(data),
	})
	return &ResolvedImage{Data: data, MIMEType: mimeType}, nil
}

// decodeDataURL handles inline "data:image/png;base64,..." payloads, which
// is how captured screenshots arrive.
func decodeDataURL(handle string) (*ResolvedImage, error) {
	rest := strings.TrimPrefix(handle, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return nil, fmt.Errorf("%w: malformed data URL", ErrUnsupportedHandle)
	}

	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = "image/png"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: data URL payload: %v", ErrUnsupportedHandle, err)
	}

	return &ResolvedImage{Data: data, MIMEType: mimeType}, nil
}

func splitS3Handle(handle string) (string, string, error) {
	rest := strings.TrimPrefix(handle, "s3://")
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q is not s3://bucket/key", ErrUnsupportedHandle, handle)
	}
	return bucket, key, nil
}
