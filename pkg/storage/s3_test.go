package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3(t *testing.T, bucket string, minutes int) *S3 {
	t.Helper()
	s, err := NewS3(context.Background(), S3Config{
		Region:               "eu-west-1",
		AccessKeyID:          "AKIDEXAMPLE",
		SecretAccessKey:      "secret",
		AssetsBucket:         bucket,
		PresignExpireMinutes: minutes,
	}, nil)
	require.NoError(t, err)
	return s
}

func TestPresignAsset_DefaultsToAssetsBucket(t *testing.T) {
	s := newTestS3(t, "portal-assets", 5)

	raw, err := s.PresignAsset(context.Background(), "", "webinars/cover.png")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Contains(t, u.Host+u.Path, "portal-assets")
	assert.Contains(t, u.Path, "webinars/cover.png")
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestPresignAsset_NoBucket(t *testing.T) {
	s := newTestS3(t, "", 0)

	_, err := s.PresignAsset(context.Background(), "", "cover.png")
	assert.Error(t, err)
	assert.Equal(t, 15*time.Minute, s.PresignExpire())
	assert.Empty(t, s.AssetsBucket())
}
