package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "assessor-collab"

var ErrInvalidMemberToken = errors.New("invalid member token")

// JWTService issues and checks member tokens. A member token is an HS256 JWT
// issued by assessor-collab whose user_id claim is a team member id. The
// subject repeats that id as a decimal string, and the name claim carries the
// member's display name at issue time. The REST API reads it from the
// Authorization header, the sync socket from its token query parameter.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// Claims is the payload of a member token.
type Claims struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// GenerateAccessToken issues a member token for the team member memberID.
func (s *JWTService) GenerateAccessToken(memberID int64, name string) (string, error) {
	if memberID <= 0 {
		return "", fmt.Errorf("%w: member id %d", ErrInvalidMemberToken, memberID)
	}
	now := time.Now()
	claims := Claims{
		UserID: memberID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(memberID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign member token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken checks signature, issuer and expiry, then that the
// token names a member: a positive user_id matching the subject.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	var claims Claims
	if _, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing member id", ErrInvalidMemberToken)
	}
	if claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return nil, fmt.Errorf("%w: subject %q does not match member %d", ErrInvalidMemberToken, claims.Subject, claims.UserID)
	}
	return &claims, nil
}
