package httpupload

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/uploadq/internal/config"
	"github.com/phrazzld/uploadq/internal/upload"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"
)

// ChecksumHeader carries the hex-encoded BLAKE2b-256 digest of the file
const ChecksumHeader = "X-Content-Blake2b-256"

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 512

// Client uploads files to a single HTTP endpoint.
type Client struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains endpoint, field name, progress and timeout settings
	config config.TransportConfig

	// httpClient performs the requests
	httpClient *http.Client
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client from the transport configuration.
func NewClient(logger *slog.Logger, cfg config.TransportConfig, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("upload endpoint cannot be empty")
	}
	if cfg.FieldName == "" {
		cfg.FieldName = "file"
	}
	if cfg.ProgressRate <= 0 {
		cfg.ProgressRate = 4
	}

	c := &Client{
		logger:     logger.With("component", "http_upload"),
		config:     cfg,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Upload implements upload.UploadFunc. The file is opened before Upload
// returns so a missing file fails the task immediately; the transfer itself
// runs in the background. aux, when it is a non-empty string, is sent as a
// bearer token.
func (c *Client) Upload(ctx context.Context, path string, aux any) (upload.Transfer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}

	var cancel context.CancelFunc
	if c.config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	token, _ := aux.(string)
	transfer := upload.NewPending(cancel)

	go func() {
		defer cancel()
		defer func() { _ = file.Close() }()

		url, err := c.send(ctx, transfer, file, info.Size(), token)
		if err != nil {
			c.logger.DebugContext(ctx, "upload request failed",
				"path", path,
				"error", err)
			transfer.Reject(err)
			return
		}
		c.logger.DebugContext(ctx, "upload request completed",
			"path", path,
			"bytes", info.Size(),
			"url", url)
		transfer.Resolve(url)
	}()

	return transfer, nil
}

// send performs the POST and extracts the resource URL from the response.
func (c *Client) send(
	ctx context.Context,
	transfer *upload.Pending,
	file *os.File,
	size int64,
	token string,
) (string, error) {
	checksum, err := digest(file)
	if err != nil {
		return "", err
	}

	body, writer := io.Pipe()
	defer func() { _ = body.Close() }()
	form := multipart.NewWriter(writer)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set(ChecksumHeader, checksum)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	source := &progressReader{
		reader:  file,
		total:   size,
		limiter: rate.NewLimiter(rate.Limit(c.config.ProgressRate), 1),
		report:  transfer.Report,
	}
	go func() {
		writer.CloseWithError(writeForm(form, c.config.FieldName, filepath.Base(file.Name()), source, transfer))
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: %d %s", ErrUnexpectedStatus,
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return resourceURL(resp)
}

// writeForm streams the file part. Completion is reported before the closing
// boundary so the consumer sees 1.0 before the server can respond.
func writeForm(
	form *multipart.Writer,
	field, filename string,
	source io.Reader,
	transfer *upload.Pending,
) error {
	part, err := form.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, source); err != nil {
		return err
	}
	transfer.Report(1)
	return form.Close()
}

// digest returns the hex BLAKE2b-256 digest of file and rewinds it.
func digest(file *os.File) (string, error) {
	hash, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", file.Name(), err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind %s: %w", file.Name(), err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// resourceURL reads the uploaded resource URL from a JSON body of the form
// {"url": "..."}, falling back to the Location header.
func resourceURL(resp *http.Response) (string, error) {
	var payload struct {
		URL string `json:"url"`
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to decode upload response: %w", err)
		}
	}
	if payload.URL != "" {
		return payload.URL, nil
	}
	if location := resp.Header.Get("Location"); location != "" {
		return location, nil
	}
	return "", ErrMissingURL
}
