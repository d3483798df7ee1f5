// Package signing implements Google Maps style URL signing: an HMAC-SHA1
// signature over the request path and query, appended as a base64url
// signature parameter. The secret itself is a base64url-encoded key as
// issued by the Google Cloud console.
package signing

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
)

// Signer signs upstream URLs with a shared secret
type Signer struct {
	key []byte
}

// New creates a signer from a base64url-encoded secret
func New(secret string) (*Signer, error) {
	key, err := base64.URLEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signing secret: %w", err)
	}
	return &Signer{key: key}, nil
}

// SignURL computes the signature over the URL's path and query and returns
// the URL with the signature parameter appended
func (s *Signer) SignURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL for signing: %w", err)
	}

	mac := hmac.New(sha1.New, s.key)
	mac.Write([]byte(u.Path + "?" + u.RawQuery))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	q := u.Query()
	q.Set("signature", sig)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
