package httpupload

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/uploadq/internal/config"
	"github.com/phrazzld/uploadq/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

const waitTimeout = 5 * time.Second

// received captures what the test server saw
type received struct {
	filename      string
	content       []byte
	checksum      string
	authorization string
}

func newTestClient(t *testing.T, endpoint string, opts ...Option) *Client {
	t.Helper()
	client, err := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), config.TransportConfig{
		Endpoint:     endpoint,
		FieldName:    "upload",
		ProgressRate: 1000,
	}, opts...)
	require.NoError(t, err)
	return client
}

// writeTempFile creates a file with the given content and returns its path
func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

// await drains progress until the transfer settles
func await(t *testing.T, transfer upload.Transfer) (string, []float64, error) {
	t.Helper()
	var progress []float64
	timeout := time.After(waitTimeout)
	for {
		select {
		case p := <-transfer.Progress():
			progress = append(progress, p)
		case <-transfer.Done():
			url, err := transfer.Result()
			return url, progress, err
		case <-timeout:
			t.Fatal("timed out waiting for the transfer to settle")
		}
	}
}

// captureServer records the multipart upload and answers with respond
func captureServer(t *testing.T, respond func(w http.ResponseWriter)) (*httptest.Server, chan received) {
	t.Helper()
	seen := make(chan received, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("upload")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = file.Close() }()
		content, _ := io.ReadAll(file)

		seen <- received{
			filename:      header.Filename,
			content:       content,
			checksum:      r.Header.Get(ChecksumHeader),
			authorization: r.Header.Get("Authorization"),
		}
		respond(w)
	}))
	t.Cleanup(server.Close)
	return server, seen
}

func TestNewClient_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient(nil, config.TransportConfig{Endpoint: "http://x"})
	assert.Error(t, err)

	_, err = NewClient(logger, config.TransportConfig{})
	assert.Error(t, err)

	client, err := NewClient(logger, config.TransportConfig{Endpoint: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, "file", client.config.FieldName)
	assert.Equal(t, 4.0, client.config.ProgressRate)
}

func TestUpload_Success(t *testing.T) {
	content := bytes.Repeat([]byte("upld"), 64*1024)
	path := writeTempFile(t, "photo.jpg", content)

	server, seen := captureServer(t, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/photo.jpg"})
	})
	client := newTestClient(t, server.URL, WithHTTPClient(server.Client()))

	transfer, err := client.Upload(context.Background(), path, "token-123")
	require.NoError(t, err)

	url, progress, err := await(t, transfer)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/photo.jpg", url)

	require.NotEmpty(t, progress)
	assert.Equal(t, 1.0, progress[len(progress)-1], "completion is always reported")
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1], "progress never goes backwards")
	}

	got := <-seen
	sum := blake2b.Sum256(content)
	assert.Equal(t, "photo.jpg", got.filename)
	assert.Equal(t, content, got.content)
	assert.Equal(t, hex.EncodeToString(sum[:]), got.checksum)
	assert.Equal(t, "Bearer token-123", got.authorization)
}

func TestUpload_LocationFallback(t *testing.T) {
	path := writeTempFile(t, "a.txt", []byte("hello"))
	server, seen := captureServer(t, func(w http.ResponseWriter) {
		w.Header().Set("Location", "https://cdn.example.com/a.txt")
		w.WriteHeader(http.StatusCreated)
	})
	client := newTestClient(t, server.URL)

	// aux that is not a string means no bearer token
	transfer, err := client.Upload(context.Background(), path, 42)
	require.NoError(t, err)

	url, _, err := await(t, transfer)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.txt", url)
	assert.Empty(t, (<-seen).authorization)
}

func TestUpload_Failures(t *testing.T) {
	testCases := []struct {
		name    string
		respond func(w http.ResponseWriter)
		wantErr error
	}{
		{
			name: "server error",
			respond: func(w http.ResponseWriter) {
				http.Error(w, "disk full", http.StatusInsufficientStorage)
			},
			wantErr: ErrUnexpectedStatus,
		},
		{
			name: "no url",
			respond: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusOK)
			},
			wantErr: ErrMissingURL,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempFile(t, "a.txt", []byte("hello"))
			server, _ := captureServer(t, tc.respond)
			client := newTestClient(t, server.URL)

			transfer, err := client.Upload(context.Background(), path, nil)
			require.NoError(t, err)

			_, _, err = await(t, transfer)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestUpload_StatusErrorIncludesBody(t *testing.T) {
	path := writeTempFile(t, "a.txt", []byte("hello"))
	server, _ := captureServer(t, func(w http.ResponseWriter) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})
	client := newTestClient(t, server.URL)

	transfer, err := client.Upload(context.Background(), path, nil)
	require.NoError(t, err)

	_, _, err = await(t, transfer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestUpload_MissingFileFailsImmediately(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")

	transfer, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), nil)
	assert.Nil(t, transfer)
	assert.ErrorIs(t, err, os.ErrNotExist)

	transfer, err = client.Upload(context.Background(), t.TempDir(), nil)
	assert.Nil(t, transfer)
	assert.ErrorIs(t, err, ErrNotRegularFile)
}

func TestUpload_Abort(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		arrived <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	path := writeTempFile(t, "a.txt", []byte("hello"))
	client := newTestClient(t, server.URL)

	transfer, err := client.Upload(context.Background(), path, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-transfer.Progress():
			case <-transfer.Done():
				return
			}
		}
	}()

	select {
	case <-arrived:
	case <-time.After(waitTimeout):
		t.Fatal("request never reached the server")
	}
	transfer.Abort()

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("aborted transfer never settled")
	}
	_, err = transfer.Result()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpload_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	path := writeTempFile(t, "a.txt", []byte("hello"))
	client, err := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), config.TransportConfig{
		Endpoint: server.URL,
		Timeout:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	transfer, err := client.Upload(context.Background(), path, nil)
	require.NoError(t, err)

	_, _, err = await(t, transfer)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
