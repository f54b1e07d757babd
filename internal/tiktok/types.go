// Package tiktok talks to the backend's TikTok endpoints: the account link,
// the cached profile and content posting.
package tiktok

import (
	"encoding/json"
	"io"
)

// TokenData is the linked account's stored OAuth token
type TokenData struct {
	ID               int64   `json:"id"`
	UserID           string  `json:"user_id"`
	TokenType        string  `json:"token_type"`
	AccessToken      string  `json:"access_token"`
	RefreshToken     string  `json:"refresh_token"`
	Scope            string  `json:"scope"`
	OpenID           string  `json:"open_id"`
	TikTokUserID     *string `json:"tiktok_user_id"`
	TestUserID       *string `json:"test_user_id"`
	ExpiresIn        int64   `json:"expires_in"`
	RefreshExpiresIn int64   `json:"refresh_expires_in"`
	ExpiresAt        string  `json:"expires_at"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// OAuthData carries the third-party authorization URL
type OAuthData struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	UserID       string `json:"user_id"`
	AuthURL      string `json:"auth_url"`
	Instructions string `json:"instructions"`
}

type Profile struct {
	OpenID          string `json:"open_id"`
	UnionID         string `json:"union_id"`
	AvatarURL       string `json:"avatar_url"`
	AvatarURL100    string `json:"avatar_url_100"`
	AvatarLargeURL  string `json:"avatar_large_url"`
	DisplayName     string `json:"display_name"`
	BioDescription  string `json:"bio_description"`
	ProfileDeepLink string `json:"profile_deep_link"`
	IsVerified      bool   `json:"is_verified"`
	Username        string `json:"username"`
	FollowerCount   int64  `json:"follower_count"`
	FollowingCount  int64  `json:"following_count"`
	LikesCount      int64  `json:"likes_count"`
	VideoCount      int64  `json:"video_count"`
}

// PrivacyLevel controls who can see a post
type PrivacyLevel string

const (
	PrivacySelfOnly            PrivacyLevel = "SELF_ONLY"
	PrivacyMutualFollowFriends PrivacyLevel = "MUTUAL_FOLLOW_FRIENDS"
	PrivacyFollowerOfCreator   PrivacyLevel = "FOLLOWER_OF_CREATOR"
	PrivacyPublicToEveryone    PrivacyLevel = "PUBLIC_TO_EVERYONE"
)

// Valid reports whether p is one of the known levels
func (p PrivacyLevel) Valid() bool {
	switch p {
	case PrivacySelfOnly, PrivacyMutualFollowFriends, PrivacyFollowerOfCreator, PrivacyPublicToEveryone:
		return true
	}
	return false
}

// PhotoPostRequest publishes one or more images directly. The yaml tags let
// a request be kept in a file.
type PhotoPostRequest struct {
	PhotoURLs          []string     `json:"photo_urls" yaml:"photo_urls"`
	CoverIndex         int          `json:"cover_index" yaml:"cover_index"`
	Title              string       `json:"title" yaml:"title"`
	Description        string       `json:"description" yaml:"description"`
	PrivacyLevel       PrivacyLevel `json:"privacy_level" yaml:"privacy_level"`
	DisableComment     bool         `json:"disable_comment" yaml:"disable_comment"`
	AutoAddMusic       bool         `json:"auto_add_music" yaml:"auto_add_music"`
	BrandContentToggle bool         `json:"brand_content_toggle" yaml:"brand_content_toggle"`
	BrandOrganicToggle bool         `json:"brand_organic_toggle" yaml:"brand_organic_toggle"`
}

type PhotoPostResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DraftVideoURLRequest queues a draft from a remote video
type DraftVideoURLRequest struct {
	VideoURL string `json:"video_url"`
	Title    string `json:"title"`
}

// DraftVideoFile queues a draft from local bytes. Size may be 0 when
// unknown, in which case no intermediate progress is reported.
type DraftVideoFile struct {
	Name   string
	Size   int64
	Reader io.Reader
	Title  string
}

type UploadFileInfo struct {
	Filename        string `json:"filename"`
	FileSize        int64  `json:"file_size"`
	ContentType     string `json:"content_type"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunks     int    `json:"total_chunks"`
	UploadCompleted bool   `json:"upload_completed"`
}

type DraftVideoResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    *DraftVideoData `json:"data,omitempty"`
}

type DraftVideoData struct {
	Data *struct {
		PublishID string `json:"publish_id,omitempty"`
		UploadURL string `json:"upload_url,omitempty"`
	} `json:"data,omitempty"`
	Error *struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		LogID   string `json:"log_id,omitempty"`
	} `json:"error,omitempty"`
	UploadStatus string          `json:"upload_status,omitempty"`
	FileInfo     *UploadFileInfo `json:"file_info,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
}

// PublishID returns the queued draft's id, if the backend reported one
func (r *DraftVideoResponse) PublishID() string {
	if r == nil || r.Data == nil || r.Data.Data == nil {
		return ""
	}
	return r.Data.Data.PublishID
}

// envelope is the backend's {success, message, data} wrapper
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type profilePayload struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	Data        *Profile `json:"data"`
	Source      string   `json:"source,omitempty"`
	LastUpdated string   `json:"last_updated,omitempty"`
}

// ProfileResult is a profile together with the backend's cache metadata
type ProfileResult struct {
	Profile     *Profile
	LastUpdated string
	Source      string
}
