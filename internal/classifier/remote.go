package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/heart-intake-server/internal/domain"
)

// PredictRequest is the body posted to the model server.
type PredictRequest struct {
	FeatureNames []string  `json:"feature_names"`
	Features     []float64 `json:"features"`
}

// PredictResponse is the model server answer.
type PredictResponse struct {
	Prediction *int   `json:"prediction"`
	Model      string `json:"model,omitempty"`
}

// RemoteClassifier delegates prediction to an HTTP model server.
type RemoteClassifier struct {
	client    *resty.Client
	breaker   *gobreaker.CircuitBreaker
	rateLimit *rate.Limiter
	baseURL   string
	log       *logrus.Logger
}

// NewRemoteClassifier creates a client for the model server in config.
func NewRemoteClassifier(config domain.RemoteClassifierConfig, logger *logrus.Logger) *RemoteClassifier {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.OpenTimeout == 0 {
		config.OpenTimeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "model-server",
		MaxRequests: 1,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RemoteClassifier{
		client:    client,
		breaker:   breaker,
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseURL:   config.BaseURL,
		log:       logger,
	}
}

// Predict posts the features to the model server.
func (r *RemoteClassifier) Predict(ctx context.Context, features domain.FeatureVector) (int, error) {
	if err := r.rateLimit.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.post(ctx, features)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("model server unavailable: %w", err)
		}
		return 0, err
	}
	return result.(int), nil
}

func (r *RemoteClassifier) post(ctx context.Context, features domain.FeatureVector) (int, error) {
	var out PredictResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(PredictRequest{
			FeatureNames: domain.FeatureNames[:],
			Features:     features[:],
		}).
		SetResult(&out).
		Post("/predict")
	if err != nil {
		return 0, fmt.Errorf("calling model server: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		r.log.WithFields(logrus.Fields{
			"status": resp.StatusCode(),
			"body":   string(resp.Body()),
		}).Error("Model server returned non-200 status")
		return 0, fmt.Errorf("model server returned status %d", resp.StatusCode())
	}

	if out.Prediction == nil {
		return 0, fmt.Errorf("model server response has no prediction")
	}
	label := *out.Prediction
	if label != domain.OutcomeNegative && label != domain.OutcomePositive {
		return 0, fmt.Errorf("model server returned invalid label %d", label)
	}
	return label, nil
}

// Name identifies the remote backend.
func (r *RemoteClassifier) Name() string {
	return "remote:" + r.baseURL
}
