// Package prediction submits completed intake records and handwriting images
// to the external prediction service.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/neurotrace/intake/pkg/common/config"
	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/common/models"
	"github.com/neurotrace/intake/pkg/gateway/httpclient"
	"github.com/neurotrace/intake/pkg/schema"
)

var (
	ErrEmptySubmission  = errors.New("submission has neither features nor an image")
	ErrInvalidFeatures  = errors.New("invalid feature record")
	ErrInvalidResponse  = errors.New("invalid prediction response")
	ErrServer           = errors.New("server error, please try again later")
	ErrNetwork          = errors.New("network error, please check your connection")
	errResponseTooLarge = errors.New("response body too large")
)

const maxResponseBytes = 1 << 20

// APIError is a 4xx answer from the prediction service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return e.Detail
}

// Mode names which model path a submission takes.
type Mode string

const (
	ModeFeatures Mode = "features-only"
	ModeImage    Mode = "image-only"
	ModeEnsemble Mode = "ensemble"
)

// Submission is what the wizard sends once the user confirms the record.
type Submission struct {
	Features schema.Record
	Image    *Image
}

func (s Submission) Mode() (Mode, error) {
	hasFeatures := len(s.Features) > 0
	hasImage := s.Image != nil && len(s.Image.Data) > 0
	switch {
	case hasFeatures && hasImage:
		return ModeEnsemble, nil
	case hasFeatures:
		return ModeFeatures, nil
	case hasImage:
		return ModeImage, nil
	}
	return "", ErrEmptySubmission
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewClient builds a client from configuration. When a token URL is set the
// transport obtains bearer tokens with the client-credentials grant.
func NewClient(cfg *config.Config) *Client {
	httpClient := httpclient.New(cfg.PredictionTimeout)
	if cfg.PredictionTokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.PredictionClientID,
			ClientSecret: cfg.PredictionClientSecret,
			TokenURL:     cfg.PredictionTokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = cc.Client(ctx)
		httpClient.Timeout = cfg.PredictionTimeout
	}
	return New(cfg.PredictionBaseURL, httpClient, cfg.PredictionRetries+1)
}

func New(baseURL string, httpClient *http.Client, attempts int) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(30 * time.Second)
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		attempts:   attempts,
		backoff:    200 * time.Millisecond,
	}
}

// Health reports the service status string, "healthy" when it is up.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodGet, "/health", "", nil, &out)
	if err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) PredictFeatures(ctx context.Context, record schema.Record) (models.PredictionResponse, error) {
	if err := checkRecord(record); err != nil {
		return models.PredictionResponse{}, err
	}
	body, err := json.Marshal(record)
	if err != nil {
		return models.PredictionResponse{}, err
	}
	return c.predict(ctx, "/predict/json", "application/json", body)
}

// PredictForm posts the record as the comma-separated form_data field.
func (c *Client) PredictForm(ctx context.Context, record schema.Record) (models.PredictionResponse, error) {
	if err := checkRecord(record); err != nil {
		return models.PredictionResponse{}, err
	}
	form, err := schema.FormString(record)
	if err != nil {
		return models.PredictionResponse{}, err
	}
	body, contentType, err := multipartBody(map[string]string{"form_data": form}, nil)
	if err != nil {
		return models.PredictionResponse{}, err
	}
	return c.predict(ctx, "/predict/form", contentType, body)
}

func (c *Client) PredictImage(ctx context.Context, img Image) (models.PredictionResponse, error) {
	body, contentType, err := multipartBody(nil, &img)
	if err != nil {
		return models.PredictionResponse{}, err
	}
	return c.predict(ctx, "/predict/file", contentType, body)
}

// PredictEnsemble sends the image and the record together; the service
// combines both model outputs.
func (c *Client) PredictEnsemble(ctx context.Context, img Image, record schema.Record) (models.PredictionResponse, error) {
	if err := checkRecord(record); err != nil {
		return models.PredictionResponse{}, err
	}
	features, err := json.Marshal(record)
	if err != nil {
		return models.PredictionResponse{}, err
	}
	body, contentType, err := multipartBody(map[string]string{"features_json": string(features)}, &img)
	if err != nil {
		return models.PredictionResponse{}, err
	}
	return c.predict(ctx, "/predict/ensemble", contentType, body)
}

// Submit routes a submission to the matching endpoint.
func (c *Client) Submit(ctx context.Context, sub Submission) (Mode, models.PredictionResponse, error) {
	mode, err := sub.Mode()
	if err != nil {
		return "", models.PredictionResponse{}, err
	}

	var resp models.PredictionResponse
	switch mode {
	case ModeEnsemble:
		resp, err = c.PredictEnsemble(ctx, *sub.Image, sub.Features)
	case ModeFeatures:
		resp, err = c.PredictFeatures(ctx, sub.Features)
	case ModeImage:
		resp, err = c.PredictImage(ctx, *sub.Image)
	}
	return mode, resp, err
}

func (c *Client) predict(ctx context.Context, path, contentType string, body []byte) (models.PredictionResponse, error) {
	var resp models.PredictionResponse
	if err := c.do(ctx, http.MethodPost, path, contentType, body, &resp); err != nil {
		return models.PredictionResponse{}, err
	}
	if err := ValidateResponse(resp); err != nil {
		return models.PredictionResponse{}, err
	}
	return resp, nil
}

// do sends one request, retrying only transport failures.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out interface{}) error {
	start := time.Now()
	err := httpclient.Retry(ctx, c.attempts, c.backoff, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return httpclient.Permanent(err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if httpclient.IsRetriable(err) {
				return fmt.Errorf("%w: %v", ErrNetwork, err)
			}
			return httpclient.Permanent(fmt.Errorf("%w: %v", ErrNetwork, err))
		}
		defer resp.Body.Close()

		return httpclient.Permanent(decodeResponse(resp, out))
	})

	entry := logger.WithFields(map[string]interface{}{
		"path":     path,
		"duration": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("prediction service call failed")
		return err
	}
	entry.Debug("prediction service call completed")
	return nil
}

func decodeResponse(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if len(data) > maxResponseBytes {
		return errResponseTooLarge
	}

	switch {
	case resp.StatusCode >= 500:
		return ErrServer
	case resp.StatusCode >= 400:
		var body struct {
			Detail interface{} `json:"detail"`
		}
		detail := "Invalid request data"
		if json.Unmarshal(data, &body) == nil && body.Detail != nil {
			if s, ok := body.Detail.(string); ok {
				detail = s
			} else if b, err := json.Marshal(body.Detail); err == nil {
				detail = string(b)
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// ValidateResponse rejects answers outside the documented shape.
func ValidateResponse(resp models.PredictionResponse) error {
	if resp.Prediction != 0 && resp.Prediction != 1 {
		return fmt.Errorf("%w: prediction %d is not 0 or 1", ErrInvalidResponse, resp.Prediction)
	}
	if !unit(resp.Confidence) {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidResponse, resp.Confidence)
	}
	if len(resp.Probs) != 2 {
		return fmt.Errorf("%w: expected 2 probabilities, got %d", ErrInvalidResponse, len(resp.Probs))
	}
	for _, p := range resp.Probs {
		if !unit(p) {
			return fmt.Errorf("%w: probability %v outside [0,1]", ErrInvalidResponse, p)
		}
	}
	return nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func checkRecord(record schema.Record) error {
	if problems := schema.ValidateRecord(record, true); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFeatures, strings.Join(problems, "; "))
	}
	return nil
}

func multipartBody(fields map[string]string, img *Image) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	if img != nil {
		mediaType, err := ValidateImage(*img)
		if err != nil {
			return nil, "", err
		}
		name := img.Name
		if name == "" {
			name = "handwriting"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
		h.Set("Content-Type", mediaType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
