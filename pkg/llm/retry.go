package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"herald/pkg/clients"
)

const (
	maxRetries     = 3
	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

type buildError struct{ err error }

func (e buildError) Error() string { return e.err.Error() }
func (e buildError) Unwrap() error { return e.err }

func shouldRetryCompletion(resp *http.Response, err error) bool {
	var be buildError
	if errors.As(err, &be) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return clients.DefaultShouldRetry(resp, err)
}

// doWithRetry sends the request built by build, retrying transport errors,
// 429 and 5xx with backoff. build is called once per attempt so bodies are
// never reused.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	executor := clients.NewHTTPExecutor(clients.HTTPExecutorConfig{
		MaxRetries:  maxRetries,
		BaseDelay:   retryBaseDelay,
		MaxDelay:    retryMaxDelay,
		ShouldRetry: shouldRetryCompletion,
	})

	resp, err := clients.ExecuteHTTP(ctx, executor, func() (*http.Response, error) {
		req, buildErr := build()
		if buildErr != nil {
			return nil, buildError{err: buildErr}
		}
		resp, doErr := client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if shouldRetryCompletion(resp, nil) {
			// Retried responses are discarded; keep the body readable for the last one.
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(body))
		}
		return resp, nil
	})
	if err != nil {
		var be buildError
		if errors.As(err, &be) {
			return nil, be.err
		}
		var exceeded *retrypolicy.ExceededError
		if errors.As(err, &exceeded) {
			if last, ok := exceeded.LastResult.(*http.Response); ok && last != nil {
				resp = last
			} else if lastErr := exceeded.LastError; lastErr != nil {
				return nil, fmt.Errorf("retries exhausted: %w", lastErr)
			}
		}
		if resp != nil {
			return nil, exhaustedError(resp)
		}
		return nil, err
	}
	return resp, nil
}

func exhaustedError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	resp.Body.Close()
	return fmt.Errorf("retries exhausted: unexpected status %s: %s", resp.Status, bytes.TrimSpace(body))
}
