package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postsiva/postsiva-cli/internal/handshake"
	"github.com/postsiva/postsiva-cli/internal/tiktok"
)

func TestLinkedAccount(t *testing.T) {
	tests := []struct {
		name    string
		token   *tiktok.TokenData
		wantErr bool
	}{
		{name: "no data", token: nil, wantErr: true},
		{name: "empty access token", token: &tiktok.TokenData{OpenID: "oid"}, wantErr: true},
		{name: "linked", token: &tiktok.TokenData{AccessToken: "act.1", OpenID: "oid"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := linkedAccount(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, errNotLinked)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.token, got)
		})
	}
}

func TestLinkTable(t *testing.T) {
	data := linkTable(&tiktok.TokenData{
		AccessToken: "act.1",
		OpenID:      "oid",
		Scope:       "user.info.basic,video.publish",
		ExpiresAt:   "2024-06-01T00:00:00Z",
	})
	assert.Equal(t, []string{"Scope", "user.info.basic, video.publish"}, data[1])
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name       string
		status     handshake.Status
		wantLinked bool
		wantErr    string
	}{
		{name: "connected", status: handshake.Status{Phase: handshake.PhaseConnected}, wantLinked: true},
		{name: "closed by user", status: handshake.Status{Phase: handshake.PhaseIdle}},
		{
			name:    "popup blocked",
			status:  handshake.Status{Phase: handshake.PhaseIdle, Error: handshake.MsgPopupBlocked},
			wantErr: handshake.MsgPopupBlocked,
		},
		{
			name:    "failed",
			status:  handshake.Status{Phase: handshake.PhaseFailed, Error: "access_denied"},
			wantErr: "access_denied",
		},
		{
			name:    "failed without message",
			status:  handshake.Status{Phase: handshake.PhaseFailed},
			wantErr: handshake.MsgConnectFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linked, err := settle(tt.status)
			assert.Equal(t, tt.wantLinked, linked)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
