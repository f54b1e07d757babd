package requester_test

import (
	"net/http"
	"testing"

	"github.com/postsiva/postsiva-cli/internal/requester"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerAuthManager_ApplyAuth(t *testing.T) {
	tests := []struct {
		name      string
		tokens    requester.TokenSource
		wantErr   bool
		checkAuth func(t *testing.T, req *http.Request)
	}{
		{
			name: "Token available",
			tokens: requester.TokenSourceFunc(func() (string, bool) {
				return "test-token", true
			}),
			checkAuth: func(t *testing.T, req *http.Request) {
				assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
			},
		},
		{
			name: "No session",
			tokens: requester.TokenSourceFunc(func() (string, bool) {
				return "", false
			}),
			wantErr: true,
		},
		{
			name:    "Nil token source",
			tokens:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{Header: make(http.Header)}
			err := requester.NewBearerAuthManager(tt.tokens).ApplyAuth(req)
			if tt.wantErr {
				var apiErr *requester.Error
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusUnauthorized, apiErr.Code)
				assert.Equal(t, requester.NoTokenMessage, apiErr.Message)
				assert.Empty(t, req.Header.Get("Authorization"))
				return
			}
			require.NoError(t, err)
			tt.checkAuth(t, req)
		})
	}
}
