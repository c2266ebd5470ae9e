package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authedHandler(t *testing.T, apiKeys []string) http.Handler {
	t.Helper()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return BearerAuthMiddleware(apiKeys)(ok)
}

func TestBearerAuth_Disabled(t *testing.T) {
	h := authedHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuth_ValidKey(t *testing.T) {
	h := authedHandler(t, []string{"sk-one", "sk-two"})

	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", nil)
	req.Header.Set("Authorization", "Bearer sk-two")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuth_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic c2stb25l"},
		{"invalid key", "Bearer sk-wrong"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := authedHandler(t, []string{"sk-one"})

			req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestBearerAuth_ExemptPaths(t *testing.T) {
	h := authedHandler(t, []string{"sk-one"})

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
