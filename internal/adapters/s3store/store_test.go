package s3store

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestURLPresignsPathStyle(t *testing.T) {
	s, err := New(context.Background(), Options{
		Bucket:    "signed",
		Region:    "eu-west-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)

	raw, err := s.URL(context.Background(), "documents/d1/v3/manifest.json", 10*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/signed/documents/d1/v3/manifest.json", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
