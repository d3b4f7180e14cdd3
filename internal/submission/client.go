package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/concept-map/backend/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultEndpoint is the concept map endpoint used when none is configured.
const DefaultEndpoint = "http://127.0.0.1:5000/send-data"

// maxErrorBody bounds how much of a failed response is drained.
const maxErrorBody = 64 * 1024

// BreakerConfig configures the optional circuit breaker around the endpoint.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig mirrors the thresholds used for the HTTP middleware
// breaker: trip at 80% failures after at least five requests.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint string
	// Origin is sent as the Origin header so CORS-aware backends treat the
	// request as cross-origin. Empty disables the header.
	Origin string
	// Timeout bounds a whole exchange. Zero means no timeout.
	Timeout time.Duration
	// Breaker enables fail-fast behaviour after repeated failures. Nil
	// disables it. The breaker never retries.
	Breaker *BreakerConfig
}

// Client posts submissions to the concept map endpoint.
type Client struct {
	endpoint   string
	origin     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a client for cfg.Endpoint (DefaultEndpoint when empty).
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	c := &Client{
		endpoint:   endpoint,
		origin:     cfg.Origin,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("submission.client"),
	}

	if cfg.Breaker != nil {
		bc := *cfg.Breaker
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        bc.Name,
			MaxRequests: bc.MaxRequests,
			Interval:    bc.Interval,
			Timeout:     bc.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < bc.MinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= bc.FailureThreshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
			IsSuccessful: isBreakerSuccess,
		})
	}

	return c
}

// Endpoint returns the URL submissions are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SendData posts text and an optional file as multipart form data and decodes
// the graph from the response.
func (c *Client) SendData(ctx context.Context, text string, file *Selection) (*models.Graph, error) {
	if c.breaker == nil {
		return c.send(ctx, text, file)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, text, file)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Err: err}
		}
		return nil, err
	}
	return result.(*models.Graph), nil
}

func (c *Client) send(ctx context.Context, text string, file *Selection) (*models.Graph, error) {
	body, contentType, err := encodeForm(text, file)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("endpoint", c.endpoint), zap.Error(err))
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("response received",
		zap.String("endpoint", c.endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	return decodeGraph(resp.Body)
}

type sendDataEnvelope struct {
	Success *bool         `json:"success"`
	Graph   *models.Graph `json:"graph"`
}

func decodeGraph(r io.Reader) (*models.Graph, error) {
	var env sendDataEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Success == nil || !*env.Success {
		return nil, fmt.Errorf("%w: missing success flag", ErrMalformedResponse)
	}
	if env.Graph == nil {
		return nil, fmt.Errorf("%w: missing graph", ErrMalformedResponse)
	}
	return env.Graph, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeForm(text string, file *Selection) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("text", text); err != nil {
		return nil, "", fmt.Errorf("writing text field: %w", err)
	}

	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
		contentType := file.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating file part: %w", err)
		}
		src, err := file.Open()
		if err != nil {
			return nil, "", fmt.Errorf("opening %s: %w", file.Name, err)
		}
		_, err = io.Copy(part, src)
		src.Close()
		if err != nil {
			return nil, "", fmt.Errorf("copying %s: %w", file.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// isBreakerSuccess counts only transport failures and 5xx responses against
// the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code < 500
	}
	var transportErr *TransportError
	return !errors.As(err, &transportErr)
}
