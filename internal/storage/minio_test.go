package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dentallab-api/internal/config"
)

func TestObjectURL(t *testing.T) {
	store, err := NewMinioStore(config.MinioConfig{
		Endpoint:  "localhost:9000",
		Bucket:    "job-attachments",
		PublicURL: "https://files.example.com/",
	})
	require.NoError(t, err)

	assert.Equal(t,
		"https://files.example.com/job-attachments/jobs/abc/scan%20final.stl",
		store.ObjectURL("jobs/abc/scan final.stl"),
	)
}

func TestObjectURLFallsBackToEndpoint(t *testing.T) {
	store, err := NewMinioStore(config.MinioConfig{Endpoint: "minio:9000", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/b/k", store.ObjectURL("k"))
}
