package gcs

import (
	"context"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "tenders"})
	require.ErrorContains(t, err, "client")

	_, err = New(&storage.Client{}, Config{Bucket: "  "})
	require.ErrorContains(t, err, "bucket")

	store, err := New(&storage.Client{}, Config{Bucket: " tenders "})
	require.NoError(t, err)
	require.Equal(t, "tenders", store.bucket)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "runs/run-1/tenders_data.json", want: "runs/run-1/tenders_data.json"},
		{in: "/runs//run-1/./tenders_data.json", want: "runs/run-1/tenders_data.json"},
		{in: "../../etc/passwd", want: "etc/passwd"},
		{in: "  ", wantErr: true},
		{in: "/", wantErr: true},
		{in: "..", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := objectName(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestChecksumIsCastagnoli(t *testing.T) {
	t.Parallel()

	// Check value for "123456789" from the CRC-32C specification.
	require.Equal(t, uint32(0xe3069283), checksum([]byte("123456789")))
}

func TestPutObjectRejectsBadPathBeforeUpload(t *testing.T) {
	t.Parallel()

	store, err := New(&storage.Client{}, Config{Bucket: "tenders"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "/", "application/json", strings.NewReader("{}"))
	require.ErrorContains(t, err, "bucket root")
}
