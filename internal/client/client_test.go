package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucasbaezmiranda/mark-frontend/internal/normalize"
)

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(zap.NewNop(), Options{Endpoint: "  "})
	assert.Error(t, err)
}

func TestAnalyzePostsRequestAndUnwrapsEnvelope(t *testing.T) {
	var got Request
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"statusCode": 200, "body": "{\"portfolios\": [{\"risk\": 0.1, \"return\": 0.02}], \"csv_url\": \"https://bucket/x.csv\"}"}`))
	}))
	defer srv.Close()

	c, err := New(zap.NewNop(), Options{Endpoint: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	res, err := c.Analyze(context.Background(), Request{
		Tickers:      []string{"AAPL", "MSFT"},
		StartDate:    "2023-01-01",
		EndDate:      "2023-12-31",
		IncludePairs: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Tickers)
	assert.Equal(t, "2023-01-01", got.StartDate)
	assert.Equal(t, "2023-12-31", got.EndDate)
	assert.True(t, got.IncludePairs)
	assert.Equal(t, "secret", headers.Get("x-api-key"))
	assert.NotEmpty(t, headers.Get("X-Request-ID"))
	assert.Equal(t, headers.Get("X-Request-ID"), res.RequestID)

	assert.Contains(t, res.Raw, "portfolios")
	assert.Equal(t, "https://bucket/x.csv", res.Raw["csv_url"])
}

func TestAnalyzeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "No data found for the selected tickers and dates."}`))
	}))
	defer srv.Close()

	c, err := New(zap.NewNop(), Options{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = c.Analyze(context.Background(), Request{Tickers: []string{"A", "B"}})
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, "No data found for the selected tickers and dates.", svcErr.Message)
}

func TestAnalyzeMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer srv.Close()

	c, err := New(zap.NewNop(), Options{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = c.Analyze(context.Background(), Request{Tickers: []string{"A", "B"}})
	assert.ErrorIs(t, err, normalize.ErrMalformedResponse)
}

func TestAnalyzeHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(zap.NewNop(), Options{Endpoint: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Analyze(ctx, Request{Tickers: []string{"A", "B"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnalyzeCoalescesIdenticalRequests(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"portfolios": []}`))
	}))
	defer srv.Close()

	c, err := New(zap.NewNop(), Options{Endpoint: srv.URL})
	require.NoError(t, err)

	req := Request{Tickers: []string{"GGAL", "YPF"}, StartDate: "2024-01-01", EndDate: "2024-12-31"}

	var wg sync.WaitGroup
	results := make([]*Result, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Analyze(context.Background(), req)
		}(i)
	}

	// Give every goroutine time to join the in-flight call before answering.
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].RequestID, results[i].RequestID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnalyzeSharedCallSurvivesFirstCallerCancel(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(`{"portfolios": [{"risk": 0.1, "return": 0.02}]}`))
	}))
	defer srv.Close()

	c, err := New(zap.NewNop(), Options{Endpoint: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	req := Request{Tickers: []string{"AAPL", "MSFT"}, StartDate: "2024-01-01", EndDate: "2024-12-31"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Analyze(firstCtx, req)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		res *Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := c.Analyze(context.Background(), req)
		second <- outcome{res, err}
	}()
	// Let the second caller join the in-flight call before the first leaves.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("first caller did not return after cancel")
	}

	close(release)
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.True(t, got.res.Shared)
		assert.Contains(t, got.res.Raw, "portfolios")
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
