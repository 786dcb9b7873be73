package submitter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/screa/rbnb-miner/internal/fault"
	"github.com/screa/rbnb-miner/internal/jsonx"
	"github.com/screa/rbnb-miner/internal/logger"
	"github.com/screa/rbnb-miner/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSolution() *types.Solution {
	return &types.Solution{
		Solution:   "0xde2c754b3ef38f4dbf478f5d0ee644e36952dc4628a48350d856cc7745ca61c9",
		Challenge:  "0x72424e4200000000000000000000000000000000000000000000000000000000",
		Address:    "0x15fcea85beda82e9e186d968c1cdc2c96865f917",
		Difficulty: "0x999999",
		Tick:       "rBNB",
	}
}

func TestDeliverOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    types.OutcomeKind
		wantErr error
	}{
		{"accepted", http.StatusOK, `{"ok":true}`, types.Success, nil},
		{"busy", http.StatusServiceUnavailable, "try later", types.RetryableFailure, fault.ErrBackendBusy},
		{"rejected", http.StatusBadRequest, "invalid solution", types.PermanentFailure, fault.ErrBackendRejected},
		{"server error", http.StatusInternalServerError, "boom", types.PermanentFailure, fault.ErrBackendRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := New(Options{URL: srv.URL}, logger.NewNop())
			outcome := c.Deliver(context.Background(), testSolution())

			assert.Equal(t, tt.kind, outcome.Kind)
			assert.Equal(t, tt.status, outcome.StatusCode)
			if tt.wantErr == nil {
				assert.NoError(t, outcome.Err)
				return
			}
			assert.ErrorIs(t, outcome.Err, tt.wantErr)
		})
	}
}

func TestDeliverCapturesRejectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "solution already used", http.StatusConflict)
	}))
	defer srv.Close()

	outcome := New(Options{URL: srv.URL}, logger.NewNop()).Deliver(context.Background(), testSolution())

	var se *fault.StatusError
	require.True(t, errors.As(outcome.Err, &se))
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.Contains(t, se.Body, "solution already used")
}

func TestDeliverRequest(t *testing.T) {
	var (
		method  string
		ctype   string
		origin  string
		payload types.Solution
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		ctype = r.Header.Get("Content-Type")
		origin = r.Header.Get("Origin")
		data, _ := io.ReadAll(r.Body)
		_ = jsonx.Unmarshal(data, &payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{
		URL:     srv.URL,
		Headers: map[string]string{"origin": "https://bnb.reth.cc"},
	}, logger.NewNop())
	outcome := c.Deliver(context.Background(), testSolution())

	require.True(t, outcome.Delivered())
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", ctype)
	assert.Equal(t, "https://bnb.reth.cc", origin)
	assert.Equal(t, *testSolution(), payload)
}

func TestDeliverTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	outcome := New(Options{URL: url}, logger.NewNop()).Deliver(context.Background(), testSolution())

	assert.Equal(t, types.RetryableFailure, outcome.Kind)
	assert.Equal(t, 0, outcome.StatusCode)
	assert.ErrorIs(t, outcome.Err, fault.ErrTransport)
}

func TestDeliverTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(Options{URL: srv.URL, Timeout: 50 * time.Millisecond}, logger.NewNop())
	outcome := c.Deliver(context.Background(), testSolution())

	assert.Equal(t, types.RetryableFailure, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, fault.ErrTransport)
}

func TestDeliverInsecureTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	strict := New(Options{URL: srv.URL}, logger.NewNop()).Deliver(context.Background(), testSolution())
	assert.Equal(t, types.RetryableFailure, strict.Kind, "self-signed certificate is refused by default")

	lax := New(Options{URL: srv.URL, InsecureTLS: true}, logger.NewNop()).Deliver(context.Background(), testSolution())
	assert.True(t, lax.Delivered())
}
