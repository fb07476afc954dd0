package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bridgeIssuer = "rpg-lite"

var (
	ErrBridgeSecret = errors.New("bridge secret is not configured")
	ErrBridgeToken  = errors.New("invalid bridge token")
)

// BridgeTokens issues and verifies HS256 tokens for chat bridges. The subject
// is the bot instance id the bridge speaks for.
type BridgeTokens struct {
	secret []byte
	now    func() time.Time
}

func NewBridgeTokens(secret string) *BridgeTokens {
	return &BridgeTokens{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for botID. A zero ttl never expires.
func (b *BridgeTokens) Issue(botID string, ttl time.Duration) (string, error) {
	if len(b.secret) == 0 {
		return "", ErrBridgeSecret
	}
	botID = strings.TrimSpace(botID)
	if botID == "" {
		return "", fmt.Errorf("bridge token needs a bot id")
	}
	now := b.now()
	claims := jwt.RegisteredClaims{
		Issuer:   bridgeIssuer,
		Subject:  botID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}

// Verify checks signature, issuer and expiry and returns the bot id.
func (b *BridgeTokens) Verify(token string) (string, error) {
	if len(b.secret) == 0 {
		return "", ErrBridgeSecret
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return b.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(bridgeIssuer),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBridgeToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrBridgeToken)
	}
	return claims.Subject, nil
}
