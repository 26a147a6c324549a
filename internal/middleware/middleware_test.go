package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/pkg/logger"
)

func whoami() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context())))
	})
}

func TestAuth(t *testing.T) {
	h := Auth("s3cret")(whoami())

	token, err := IssueToken("s3cret", "u1", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken("s3cret", "u1", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken("other", "u1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, "u1"},
		{"lowercase scheme", "bearer " + token, http.StatusOK, "u1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth("")(whoami()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestIssueTokenRequiresInputs(t *testing.T) {
	_, err := IssueToken("", "u1", time.Hour)
	assert.Error(t, err)
	_, err = IssueToken("s3cret", "", time.Hour)
	assert.Error(t, err)
}

func TestCanAccess(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, CanAccess(req.Context(), "anyone"))

	var ctx = req.Context()
	token, err := IssueToken("s3cret", "u1", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	Auth("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	})).ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, CanAccess(ctx, "u1"))
	assert.False(t, CanAccess(ctx, "u2"))
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(whoami())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoggingSetsCorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestLoggingRecordsAuthenticatedUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logging(&logger.Logger{Logger: zap.New(core)})(Auth("s3cret")(whoami()))

	token, err := IssueToken("s3cret", "u1", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Correlation-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, "abc", fields["correlation_id"])
	assert.EqualValues(t, http.StatusOK, fields["status"])

	assert.Equal(t, "", entries[1].ContextMap()["user_id"])
	assert.EqualValues(t, http.StatusUnauthorized, entries[1].ContextMap()["status"])
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("Hi"))
	assert.Error(t, ValidateMessageContent(" \n"))
	assert.Error(t, ValidateMessageContent("\xff"))

	assert.NoError(t, ValidateConversationID("0190c7a4-5b7e-7d2a-9d43-6c1f1b0b7f10"))
	assert.NoError(t, ValidateConversationID("local_42"))
	assert.Error(t, ValidateConversationID(""))
	assert.Error(t, ValidateConversationID("a/b"))

	assert.NoError(t, ValidateUserID("u1"))
	assert.Error(t, ValidateUserID(" "))

	assert.NoError(t, ValidateSender(""))
	assert.NoError(t, ValidateSender(model.SenderAI))
	assert.Error(t, ValidateSender("bot"))
}
