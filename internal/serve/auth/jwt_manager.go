package auth

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"
)

const (
	DefaultMaxTimeout  = 15 * time.Second
	DefaultMaxBodySize = int64(102_400)
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrBodyTooLarge  = errors.New("request body is too large")
	ErrBodyMismatch  = errors.New("the claims' hashed body does not match the request body's hash")
	ErrNoSigningKeys = errors.New("no signing key configured")
)

type customClaims struct {
	HashedBody string `json:"hashed_body"`
	jwtgo.RegisteredClaims
}

// JWTManager signs and verifies the ES256 tokens clients attach to submission requests. Each token is bound to
// the request body through the hashed_body claim and must expire within MaxTimeout.
type JWTManager struct {
	PrivateKey  string
	PublicKey   string
	MaxTimeout  time.Duration
	MaxBodySize int64

	publicKey *ecdsa.PublicKey
}

// NewJWTManager returns a verifier for tokens signed by the private half of publicKeyPEM.
func NewJWTManager(publicKeyPEM string, maxTimeout time.Duration) (*JWTManager, error) {
	publicKey, err := jwtgo.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parsing EC Public Key: %w", err)
	}
	return &JWTManager{PublicKey: publicKeyPEM, MaxTimeout: maxTimeout, publicKey: publicKey}, nil
}

func (m *JWTManager) verificationKey() (*ecdsa.PublicKey, error) {
	if m.publicKey != nil {
		return m.publicKey, nil
	}
	if m.PublicKey == "" {
		return nil, ErrNoSigningKeys
	}
	esPublicKey, err := jwtgo.ParseECPublicKeyFromPEM([]byte(m.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("parsing EC Public Key: %w", err)
	}
	return esPublicKey, nil
}

// ParseToken parses a JWT token and returns the claims. It also checks if the token expiration is within [now,
// now+MaxTimeout], and if the claims' hashed_body matches the requestBody's hash.
func (m *JWTManager) ParseToken(tokenString string, body []byte) (*jwtgo.Token, *customClaims, error) {
	claims := &customClaims{}
	token, err := jwtgo.ParseWithClaims(tokenString, claims, func(t *jwtgo.Token) (interface{}, error) {
		return m.verificationKey()
	}, jwtgo.WithValidMethods([]string{jwtgo.SigningMethodES256.Alg()}), jwtgo.WithExpirationRequired())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing JWT token with claims: %w", err)
	}

	if claims.HashedBody != hashBody(body) {
		return nil, nil, ErrBodyMismatch
	}

	maxTimeout := m.MaxTimeout
	if maxTimeout == 0 {
		maxTimeout = DefaultMaxTimeout
	}
	if claims.ExpiresAt.After(time.Now().Add(maxTimeout)) {
		return nil, nil, fmt.Errorf("the token expiration is too long, max timeout is %s", maxTimeout)
	}

	return token, claims, nil
}

// VerifyRequest checks the request's "Authorization: Bearer" token against its body. The body is restored so
// handlers can read it again.
func (m *JWTManager) VerifyRequest(req *http.Request) error {
	tokenString, found := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !found || strings.TrimSpace(tokenString) == "" {
		return ErrMissingToken
	}

	maxBodySize := m.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(req.Body, maxBodySize+1))
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}
		if int64(len(body)) > maxBodySize {
			return ErrBodyTooLarge
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	if _, _, err := m.ParseToken(strings.TrimSpace(tokenString), body); err != nil {
		return err
	}
	return nil
}

// GenerateToken generates a JWT token with the given body and expiration time.
func (m *JWTManager) GenerateToken(body []byte, expiresAt time.Time) (string, error) {
	esPrivateKey, err := jwtgo.ParseECPrivateKeyFromPEM([]byte(m.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parsing EC Private Key: %w", err)
	}

	claims := &customClaims{
		HashedBody: hashBody(body),
		RegisteredClaims: jwtgo.RegisteredClaims{
			ExpiresAt: jwtgo.NewNumericDate(expiresAt),
		},
	}

	token := jwtgo.NewWithClaims(jwtgo.SigningMethodES256, claims)
	tokenString, err := token.SignedString(esPrivateKey)
	if err != nil {
		return "", fmt.Errorf("signing JWT token with claims: %w", err)
	}

	return tokenString, nil
}

// hashBody returns the SHA-256 hash of the body.
func hashBody(body []byte) string {
	hashedBodyBytes := sha256.Sum256(body)
	return hex.EncodeToString(hashedBodyBytes[:])
}
