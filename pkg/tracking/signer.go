// Package tracking renders outbound email content: placeholders, signed links and
// click-tracking rewrites.
package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidToken = errors.New("invalid tracking token")
	ErrEmptySecret  = errors.New("signing secret must not be empty")
	ErrTokenKind    = errors.New("unexpected tracking token kind")
)

var tokenEncoding = base64.RawURLEncoding

const (
	tokenSeparator  = "."
	clickTokenKind  = "click"
	unsubscribeKind = "unsubscribe"
)

// ClickClaims identifies which lead clicked which link of which email.
type ClickClaims struct {
	Kind    string `json:"k"`
	LeadID  string `json:"l"`
	EmailID string `json:"e"`
	URL     string `json:"u"`
}

type UnsubscribeClaims struct {
	Kind   string `json:"k"`
	LeadID string `json:"l"`
}

// Signer produces and verifies HMAC-SHA256 signed, URL-safe tokens.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) sign(claims any) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token claims: %w", err)
	}

	encoded := tokenEncoding.EncodeToString(payload)

	return encoded + tokenSeparator + tokenEncoding.EncodeToString(s.mac(encoded)), nil
}

func (s *Signer) verify(token string, claims any) error {
	encoded, signature, ok := strings.Cut(token, tokenSeparator)
	if !ok {
		return ErrInvalidToken
	}

	mac, err := tokenEncoding.DecodeString(signature)
	if err != nil || !hmac.Equal(mac, s.mac(encoded)) {
		return ErrInvalidToken
	}

	payload, err := tokenEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidToken
	}

	err = json.Unmarshal(payload, claims)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return nil
}

func (s *Signer) mac(encoded string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(encoded))

	return h.Sum(nil)
}

func (s *Signer) SignClick(leadID, emailID, url string) (string, error) {
	return s.sign(ClickClaims{Kind: clickTokenKind, LeadID: leadID, EmailID: emailID, URL: url})
}

func (s *Signer) VerifyClick(token string) (*ClickClaims, error) {
	var claims ClickClaims

	err := s.verify(token, &claims)
	if err != nil {
		return nil, err
	}

	if claims.Kind != clickTokenKind {
		return nil, ErrTokenKind
	}

	return &claims, nil
}

func (s *Signer) SignUnsubscribe(leadID string) (string, error) {
	return s.sign(UnsubscribeClaims{Kind: unsubscribeKind, LeadID: leadID})
}

func (s *Signer) VerifyUnsubscribe(token string) (*UnsubscribeClaims, error) {
	var claims UnsubscribeClaims

	err := s.verify(token, &claims)
	if err != nil {
		return nil, err
	}

	if claims.Kind != unsubscribeKind {
		return nil, ErrTokenKind
	}

	return &claims, nil
}
