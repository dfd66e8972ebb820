// Package auth issues and verifies the network tokens nodes present to each
// other. A token is an HS256 JWT signed with the shared network secret and
// carries the id of the calling node.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the registered claims and the calling node id.
type Claims struct {
	jwt.RegisteredClaims
	NodeID string
}

func GenerateToken(nodeID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		NodeID: nodeID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetNodeIDFromToken verifies tokenString and returns the node id it was
// issued to. Expired tokens yield common.ErrTokenExpired, every other
// verification failure common.ErrInvalidToken.
func GetNodeIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.NodeID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.NodeID, nil
}

// TokenSource hands out a cached token for one node and mints a new one
// when the cached token is past half of its validity.
type TokenSource struct {
	nodeID string
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	token   string
	renewAt time.Time
}

func NewTokenSource(nodeID string, secret []byte, ttl time.Duration) *TokenSource {
	return &TokenSource{nodeID: nodeID, secret: secret, ttl: ttl, now: time.Now}
}

func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.renewAt) {
		return s.token, nil
	}
	token, err := GenerateToken(s.nodeID, s.secret, s.ttl)
	if err != nil {
		return "", err
	}
	s.token = token
	s.renewAt = now.Add(s.ttl / 2)
	return token, nil
}
