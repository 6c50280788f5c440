package server

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/store"
	"github.com/nickyhof/storeadapter/wire"
)

// AuthConfig configures server authentication.
type AuthConfig struct {
	// Enabled requires every connection to authenticate first.
	Enabled bool `mapstructure:"enabled"`

	// JWTSecret is the shared secret for HS256/HS384/HS512 validation.
	JWTSecret string `mapstructure:"jwt_secret"`

	// Issuer is the expected "iss" claim, if set.
	Issuer string `mapstructure:"issuer"`

	// Audience is the expected "aud" claim, if set.
	Audience string `mapstructure:"audience"`

	// NameClaim is the claim holding the user's name (default: "name").
	NameClaim string `mapstructure:"name_claim"`

	// EmailClaim is the claim holding the user's email (default: "email").
	EmailClaim string `mapstructure:"email_claim"`
}

// ConnectionState tracks per-connection authentication state.
type ConnectionState struct {
	identity      *core.Identity
	authenticated bool
	tokenExpiry   time.Time
}

func (cs *ConnectionState) IsAuthenticated() bool {
	return cs.authenticated
}

// Identity returns the connection's identity, or nil if not authenticated.
func (cs *ConnectionState) Identity() *core.Identity {
	return cs.identity
}

// Expired reports whether the token the connection authenticated with has
// run out.
func (cs *ConnectionState) Expired() bool {
	return cs.authenticated && !cs.tokenExpiry.IsZero() && time.Now().After(cs.tokenExpiry)
}

type authResult struct {
	identity  core.Identity
	expiresAt time.Time
	err       error
}

// validateJWT validates a token and extracts identity claims.
func (s *Server) validateJWT(tokenString string) authResult {
	if s.authConfig == nil {
		return authResult{err: errors.New("authentication not configured")}
	}

	nameClaim := s.authConfig.NameClaim
	if nameClaim == "" {
		nameClaim = "name"
	}
	emailClaim := s.authConfig.EmailClaim
	if emailClaim == "" {
		emailClaim = "email"
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if s.authConfig.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.authConfig.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if s.authConfig.JWTSecret == "" {
			return nil, errors.New("no JWT secret configured")
		}
		return []byte(s.authConfig.JWTSecret), nil
	}, opts...)
	if err != nil {
		return authResult{err: fmt.Errorf("invalid token: %w", err)}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return authResult{err: errors.New("invalid token claims")}
	}

	if s.authConfig.Audience != "" {
		audiences, _ := claims.GetAudience()
		if !slices.Contains(audiences, s.authConfig.Audience) {
			return authResult{err: fmt.Errorf("invalid audience: expected %s", s.authConfig.Audience)}
		}
	}

	name, _ := claims[nameClaim].(string)
	email, _ := claims[emailClaim].(string)
	if name == "" && email == "" {
		return authResult{err: fmt.Errorf("token missing identity claims (%s or %s)", nameClaim, emailClaim)}
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return authResult{
		identity:  core.Identity{Name: name, Email: email},
		expiresAt: expiresAt,
	}
}

// handleAuth authenticates the connection. Authenticating again replaces
// the identity of sessions opened afterwards.
func (s *Server) handleAuth(token string, c *connection) wire.Response {
	if s.authConfig == nil {
		// tokens are accepted and ignored without auth
		return wire.Response{Success: true, Identity: s.identity.String()}
	}
	if token == "" {
		return wire.Failure(fmt.Errorf("%w: empty token", store.ErrRejected))
	}

	result := s.validateJWT(token)
	if result.err != nil {
		return wire.Failure(fmt.Errorf("%w: %v", store.ErrRejected, result.err))
	}

	c.state.identity = &result.identity
	c.state.authenticated = true
	c.state.tokenExpiry = result.expiresAt

	response := wire.Response{Success: true, Identity: result.identity.String()}
	if !result.expiresAt.IsZero() {
		response.ExpiresIn = int(time.Until(result.expiresAt).Seconds())
	}
	return response
}
