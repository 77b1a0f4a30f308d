package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotrace/intake/pkg/common/models"
	"github.com/neurotrace/intake/pkg/schema"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func completeRecord() schema.Record {
	r := schema.DefaultRecord()
	r[schema.Age] = 74
	r[schema.MMSE] = 21
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var okPrediction = map[string]interface{}{
	"prediction": 1,
	"confidence": 0.87,
	"probs":      []float64{0.13, 0.87},
	"status":     "success",
}

func TestPredictFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/json", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body, schema.FieldCount)
		assert.Equal(t, 74.0, body["Age"])
		writeJSON(w, http.StatusOK, okPrediction)
	}))
	defer srv.Close()

	resp, err := New(srv.URL, srv.Client(), 1).PredictFeatures(context.Background(), completeRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Prediction)
	assert.Equal(t, []float64{0.13, 0.87}, resp.Probs)
}

func TestPredictFeaturesRejectsIncompleteRecord(t *testing.T) {
	_, err := New("http://unused", nil, 1).PredictFeatures(context.Background(), schema.Record{schema.Age: 70})
	require.ErrorIs(t, err, ErrInvalidFeatures)
	assert.Contains(t, err.Error(), "is required")
}

func TestPredictForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/form", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		values := strings.Split(r.FormValue("form_data"), ",")
		assert.Len(t, values, schema.FieldCount)
		assert.Equal(t, "74", values[0])
		assert.Equal(t, "21", values[schema.Index(schema.MMSE)])
		writeJSON(w, http.StatusOK, okPrediction)
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client(), 1).PredictForm(context.Background(), completeRecord())
	require.NoError(t, err)
}

func TestSubmitEnsemble(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/ensemble", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "sample.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(f)
		assert.Equal(t, pngHeader, data)

		var features map[string]float64
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("features_json")), &features))
		assert.Equal(t, 21.0, features["MMSE"])
		writeJSON(w, http.StatusOK, okPrediction)
	}))
	defer srv.Close()

	mode, resp, err := New(srv.URL, srv.Client(), 1).Submit(context.Background(), Submission{
		Features: completeRecord(),
		Image:    &Image{Name: "sample.png", Data: pngHeader},
	})
	require.NoError(t, err)
	assert.Equal(t, ModeEnsemble, mode)
	assert.InDelta(t, 0.87, resp.Confidence, 1e-9)
}

func TestSubmitImageOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/file", r.URL.Path)
		writeJSON(w, http.StatusOK, okPrediction)
	}))
	defer srv.Close()

	mode, _, err := New(srv.URL, srv.Client(), 1).Submit(context.Background(), Submission{Image: &Image{Data: pngHeader}})
	require.NoError(t, err)
	assert.Equal(t, ModeImage, mode)
}

func TestSubmitEmpty(t *testing.T) {
	_, _, err := New("http://unused", nil, 1).Submit(context.Background(), Submission{})
	assert.ErrorIs(t, err, ErrEmptySubmission)
}

func TestBadRequestSurfacesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid JSON string for features."})
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client(), 3).PredictImage(context.Background(), Image{Data: pngHeader})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid JSON string for features.", apiErr.Error())
}

func TestServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Prediction failed"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client(), 3).PredictFeatures(context.Background(), completeRecord())
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportFailureIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, &http.Client{Timeout: time.Second}, 2)
	c.backoff = time.Millisecond
	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestInvalidResponseRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"prediction": 2, "confidence": 0.5, "probs": []float64{0.5, 0.5}})
	}))
	defer srv.Close()

	_, err := New(srv.URL, srv.Client(), 1).PredictFeatures(context.Background(), completeRecord())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestValidateResponse(t *testing.T) {
	valid := models.PredictionResponse{Prediction: 0, Confidence: 0.9, Probs: []float64{0.9, 0.1}}
	require.NoError(t, ValidateResponse(valid))

	bad := []models.PredictionResponse{
		{Prediction: 0, Confidence: 1.2, Probs: []float64{0.9, 0.1}},
		{Prediction: 1, Confidence: 0.5, Probs: []float64{0.5}},
		{Prediction: 1, Confidence: 0.5, Probs: []float64{-0.1, 1.1}},
	}
	for _, r := range bad {
		assert.ErrorIs(t, ValidateResponse(r), ErrInvalidResponse)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy", "models_loaded": map[string]bool{"mlp": true}})
	}))
	defer srv.Close()

	status, err := New(srv.URL+"/", srv.Client(), 1).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status)
}
