package emr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

const (
	fhirContentType    = "application/fhir+json"
	riskAssessmentPath = "/RiskAssessment"
	defaultTimeout     = 15 * time.Second
)

// ErrNoResourceID is returned when the EMR accepts a resource without identifying it.
var ErrNoResourceID = errors.New("EMR response carried no resource id")

// StatusError is a non-2xx response from the EMR.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("EMR returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the failure is on the server side.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// Publisher posts RiskAssessment resources to a FHIR endpoint behind a circuit
// breaker and a client-side rate limit.
type Publisher struct {
	client      *resty.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	logger      *logrus.Logger
}

// NewPublisher creates a publisher for the configured EMR.
func NewPublisher(cfg domain.EMRConfig, logger *logrus.Logger) *Publisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
		}).
		SetHeader("Content-Type", fhirContentType).
		SetHeader("Accept", fhirContentType)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	p := &Publisher{
		client:      client,
		rateLimiter: rate.NewLimiter(limit, 1),
		logger:      logger,
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "emr",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Rejected resources are the caller's problem, not an outage.
			var statusErr *StatusError
			return errors.As(err, &statusErr) && !statusErr.Temporary()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return p
}

// Publish maps the assessment, posts it and returns the id the EMR assigned.
func (p *Publisher) Publish(ctx context.Context, patientRef string, assessment *domain.Assessment) (string, error) {
	resource, err := MapAssessment(patientRef, assessment)
	if err != nil {
		return "", err
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.post(ctx, resource)
	})
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"assessment_id": assessment.ID,
			"breaker_state": p.breaker.State().String(),
			"error":         err.Error(),
		}).Error("Failed to publish assessment to EMR")
		return "", fmt.Errorf("EMR publish failed: %w", err)
	}

	id := out.(string)
	p.logger.WithFields(logrus.Fields{
		"assessment_id": assessment.ID,
		"resource_id":   id,
		"subject":       resource.Subject.Reference,
	}).Info("Assessment published to EMR")
	return id, nil
}

// State exposes the circuit breaker state for health reporting.
func (p *Publisher) State() gobreaker.State {
	return p.breaker.State()
}

func (p *Publisher) post(ctx context.Context, resource *RiskAssessment) (string, error) {
	var created RiskAssessment
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(resource).
		SetResult(&created).
		Post(riskAssessmentPath)
	if err != nil {
		return "", fmt.Errorf("EMR request failed: %w", err)
	}
	if resp.IsError() {
		return "", &StatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 512)}
	}

	if created.ID != "" {
		return created.ID, nil
	}
	if id := idFromLocation(resp.Header().Get("Location")); id != "" {
		return id, nil
	}
	return "", ErrNoResourceID
}

// idFromLocation extracts the logical id from [base]/RiskAssessment/[id]/_history/[vid].
func idFromLocation(location string) string {
	parts := strings.Split(strings.Trim(location, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "RiskAssessment" {
			return parts[i+1]
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
