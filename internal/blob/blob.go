// Package blob resolves stored image references to URLs and issues signed upload targets.
package blob

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UploadTarget is where the admin UI PUTs a new image, and the ref to store afterwards
type UploadTarget struct {
	UploadURL string    `json:"uploadUrl"`
	ImageRef  string    `json:"imageRef"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store builds URLs against an external object store
type Store struct {
	publicBaseURL string
	uploadBaseURL string
	secret        []byte
	ttl           time.Duration
}

func NewStore(publicBaseURL, uploadBaseURL, secret string, ttl time.Duration) *Store {
	return &Store{
		publicBaseURL: publicBaseURL,
		uploadBaseURL: uploadBaseURL,
		secret:        []byte(secret),
		ttl:           ttl,
	}
}

// ResolveURL returns nil when there is no image
func (s *Store) ResolveURL(ref *string) *string {
	if ref == nil || *ref == "" {
		return nil
	}
	u := s.publicBaseURL + "/" + url.PathEscape(*ref)
	return &u
}

// IssueUploadTarget allocates an object key and signs a short-lived upload URL for it
func (s *Store) IssueUploadTarget() (*UploadTarget, error) {
	ref := uuid.NewString()
	expires := time.Now().Add(s.ttl)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   ref,
		ExpiresAt: jwt.NewNumericDate(expires),
	}).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload token: %w", err)
	}

	q := url.Values{}
	q.Set("token", token)

	return &UploadTarget{
		UploadURL: s.uploadBaseURL + "/" + ref + "?" + q.Encode(),
		ImageRef:  ref,
		ExpiresAt: expires,
	}, nil
}

// VerifyUploadToken returns the object key a token grants write access to. The upload
// receiver in front of the object store calls it with the token query parameter of an
// UploadURL before it accepts the PUT; nothing in this service receives uploads itself.
func (s *Store) VerifyUploadToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid upload token: %w", err)
	}
	return claims.Subject, nil
}
