// Package assets turns image paths returned by the API into URLs a browser can load.
package assets

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Signer presigns objects in private storage. *storage.S3 implements it.
type Signer interface {
	PresignAsset(ctx context.Context, bucket, key string) (string, error)
	AssetsBucket() string
}

// Resolver resolves image references. The zero value passes references through unchanged.
type Resolver struct {
	baseURL string
	signer  Signer
	logger  *zap.Logger
}

// NewResolver creates a resolver. baseURL prefixes relative paths; signer may be nil.
func NewResolver(baseURL string, signer Signer, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{baseURL: strings.TrimRight(baseURL, "/"), signer: signer, logger: logger}
}

// Resolve returns an absolute URL for ref:
//   - http(s) URLs are returned unchanged
//   - s3://bucket/key is presigned (or "" when no signer is configured)
//   - other paths are presigned from the assets bucket when one is configured, else joined to the base URL
func (r *Resolver) Resolve(ctx context.Context, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || r == nil {
		return ref
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(ref, "//") {
		return ref
	}
	if strings.HasPrefix(lower, "s3://") {
		u, err := url.Parse(ref)
		if err != nil || r.signer == nil {
			return ""
		}
		return r.presign(ctx, u.Host, strings.TrimPrefix(u.Path, "/"), ref)
	}
	key := strings.TrimLeft(ref, "/")
	if r.signer != nil && r.signer.AssetsBucket() != "" {
		return r.presign(ctx, "", key, ref)
	}
	if r.baseURL == "" {
		return "/" + key
	}
	return r.baseURL + "/" + key
}

func (r *Resolver) presign(ctx context.Context, bucket, key, ref string) string {
	signed, err := r.signer.PresignAsset(ctx, bucket, key)
	if err != nil {
		r.logger.Warn("presign asset failed", zap.String("ref", ref), zap.Error(err))
		if r.baseURL != "" {
			return r.baseURL + "/" + key
		}
		return ""
	}
	return signed
}
