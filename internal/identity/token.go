package identity

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig holds the signing material for durable session tokens.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// TokenConfigFromEnv reads token config from environment variables.
func TokenConfigFromEnv() TokenConfig {
	ttlHours := 720
	if v := os.Getenv("SESSION_TOKEN_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttlHours = n
		}
	}
	issuer := os.Getenv("SESSION_TOKEN_ISSUER")
	if issuer == "" {
		issuer = "mindful-movement"
	}
	return TokenConfig{
		Secret: os.Getenv("JWT_SECRET"),
		Issuer: issuer,
		TTL:    time.Duration(ttlHours) * time.Hour,
	}
}

// TokenIssuer signs and parses the opaque-ish session tokens that back
// durable persistence across process restarts.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session token TTL must be > 0")
	}
	return &TokenIssuer{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: cfg.TTL}, nil
}

// Issue creates a signed session token for the account ID.
func (t *TokenIssuer) Issue(uid string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": t.issuer,
		"sub": uid,
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.secret)
}

// Parse validates a session token and returns the account ID it names.
func (t *TokenIssuer) Parse(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid session token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("session token missing subject")
	}
	return sub, nil
}
