package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/configurator/internal/settings"
)

func TestUploader_Start(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var (
		mu          sync.Mutex
		gotBody     string
		gotType     string
		gotMethod   string
		replyStatus = http.StatusOK
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody, gotType, gotMethod = string(b), r.Header.Get("Content-Type"), r.Method
		status := replyStatus
		mu.Unlock()
		w.WriteHeader(status)
	}))
	defer srv.Close()

	src := filepath.Join(t.TempDir(), "artifact.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"v":1}`), 0o644))
	u := &uploader{id: "deploy/upload", client: srv.Client()}

	// --- Act ---
	err := u.Start(context.Background(), map[string]string{"source_path": src, "upload_url": srv.URL + "/bucket/key"})

	// --- Assert ---
	require.NoError(t, err)
	mu.Lock()
	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, `{"v":1}`, gotBody)
	require.Equal(t, "application/json", gotType)
	replyStatus = http.StatusForbidden
	mu.Unlock()

	err = u.Start(context.Background(), map[string]string{"source_path": src, "upload_url": srv.URL})
	require.ErrorContains(t, err, "403")
}

func TestUploader_StartValidation(t *testing.T) {
	t.Parallel()
	u := &uploader{id: "deploy/upload", client: http.DefaultClient}

	require.ErrorContains(t, u.Start(context.Background(), map[string]string{}), "required")
	err := u.Start(context.Background(), map[string]string{
		"source_path": filepath.Join(t.TempDir(), "missing"),
		"upload_url":  "http://127.0.0.1:1",
	})
	require.ErrorIs(t, err, os.ErrNotExist)

	err = u.Start(context.Background(), map[string]string{
		"source_path": "artifact.json",
		"upload_url":  "http://127.0.0.1:1",
		"bucket":      "releases",
	})
	require.ErrorIs(t, err, settings.ErrUnknownSetting)
	require.ErrorContains(t, err, "bucket")
}
