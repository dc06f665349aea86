package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heart-intake-server/internal/domain"
)

func remoteConfig(baseURL string) domain.RemoteClassifierConfig {
	return domain.RemoteClassifierConfig{
		BaseURL:          baseURL,
		Timeout:          2 * time.Second,
		RateLimit:        1000,
		RetryCount:       0,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}
}

func TestRemoteClassifier_Predict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req PredictRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Features, domain.FeatureCount) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, domain.FeatureNames[:], req.FeatureNames)

		prediction := domain.OutcomeNegative
		if req.Features[0] >= 50 {
			prediction = domain.OutcomePositive
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"prediction": prediction})
	}))
	defer server.Close()

	remote := NewRemoteClassifier(remoteConfig(server.URL), quietLogger())
	assert.Equal(t, "remote:"+server.URL, remote.Name())

	label, err := remote.Predict(context.Background(), featureVector(63))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePositive, label)

	label, err = remote.Predict(context.Background(), featureVector(30))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNegative, label)
}

func TestRemoteClassifier_InvalidResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"missing prediction", http.StatusOK, `{"model":"svm"}`},
		{"label out of range", http.StatusOK, `{"prediction":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			remote := NewRemoteClassifier(remoteConfig(server.URL), quietLogger())
			_, err := remote.Predict(context.Background(), featureVector(63))
			assert.Error(t, err)
		})
	}
}

func TestRemoteClassifier_CircuitOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	remote := NewRemoteClassifier(remoteConfig(server.URL), quietLogger())

	for i := 0; i < 2; i++ {
		_, err := remote.Predict(context.Background(), featureVector(63))
		require.Error(t, err)
	}

	_, err := remote.Predict(context.Background(), featureVector(63))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model server unavailable")
	assert.Equal(t, int32(2), calls.Load())
}
