package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/neuraadapt/engage/internal/media"
	"github.com/neuraadapt/engage/internal/metrics"
	"github.com/neuraadapt/engage/internal/report"
	"github.com/rs/zerolog"
)

const (
	// DefaultField is the multipart field the service reads the video from.
	DefaultField = "video"

	maxResponseBytes = 16 << 20
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Config holds client settings. A zero Timeout means the request runs until
// the service answers or ctx is cancelled.
type Config struct {
	URL        string
	Field      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client uploads an accepted video to the analysis service.
type Client struct {
	url     string
	field   string
	timeout time.Duration
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates an analysis client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Field == "" {
		cfg.Field = DefaultField
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		url:     cfg.URL,
		field:   cfg.Field,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		logger:  logger.With().Str("component", "analysis").Logger(),
	}
}

// Submit uploads asset as a single multipart part and returns the
// normalized result. Errors are ErrNoAssetSelected, *ServiceError or
// *TransportError. Submit never retries.
func (c *Client) Submit(ctx context.Context, asset *media.VideoAsset) (*report.Result, error) {
	if asset == nil || asset.File == nil {
		return nil, ErrNoAssetSelected
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.submit(ctx, asset.File)
	outcome := outcomeOf(err)
	metrics.AnalysisRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.AnalysisDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("file", asset.File.Name()).
			Str("outcome", outcome).
			Dur("elapsed", time.Since(start)).
			Msg("Analysis failed")
		return nil, err
	}

	c.logger.Info().
		Str("file", asset.File.Name()).
		Str("session_id", res.SessionID).
		Int("heatmap_bins", len(res.Heatmap)).
		Int("notes", len(res.Notes)).
		Dur("elapsed", time.Since(start)).
		Msg("Analysis completed")

	return res, nil
}

func (c *Client) submit(ctx context.Context, f media.File) (*report.Result, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}

	pr, pw := io.Pipe()
	defer func() { _ = pr.Close() }()

	mw := multipart.NewWriter(pw)
	go func() {
		defer func() { _ = rc.Close() }()
		pw.CloseWithError(c.writeBody(mw, f, rc))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", c.url).
		Str("file", f.Name()).
		Int64("size", f.Size()).
		Msg("Uploading video for analysis")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Message: transportMessage(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Message: transportMessage(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	res, err := report.Decode(body)
	if err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: GenericFailureMessage}
	}
	return res, nil
}

func (c *Client) writeBody(mw *multipart.Writer, f media.File, r io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(c.field), quoteEscaper.Replace(f.Name())))
	h.Set("Content-Type", f.MediaType())

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	n, err := io.Copy(part, r)
	metrics.UploadBytesTotal.Add(float64(n))
	if err != nil {
		return fmt.Errorf("failed to stream video: %w", err)
	}
	return mw.Close()
}

// errorMessage extracts the service's "error" string, falling back to the
// generic message.
func errorMessage(body []byte) string {
	var envelope struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return GenericFailureMessage
	}
	if msg, ok := envelope.Error.(string); ok && strings.TrimSpace(msg) != "" {
		return msg
	}
	return GenericFailureMessage
}

func transportMessage(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		err = uerr.Err
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return GenericFailureMessage
}

func outcomeOf(err error) string {
	var serr *ServiceError
	var terr *TransportError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &serr):
		return "service_error"
	case errors.As(err, &terr):
		if errors.Is(err, context.Canceled) {
			return "cancelled"
		}
		return "transport_error"
	default:
		return "error"
	}
}
