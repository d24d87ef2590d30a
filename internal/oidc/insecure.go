package oidc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/publishflow/publishflow/pkg/middleware"
)

// unverifiedClaims are the claims of a token whose signature was not checked.
type unverifiedClaims jwt.MapClaims

func (c unverifiedClaims) Claims(v interface{}) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// InsecureVerifier trusts the claims of any well-formed JWT. It is only
// installed when ALLOW_INSECURE_TOKEN is set and no real verifier is
// configured.
type InsecureVerifier struct {
	parser *jwt.Parser
}

func NewInsecureVerifier() *InsecureVerifier {
	return &InsecureVerifier{parser: jwt.NewParser()}
}

func (v *InsecureVerifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := v.parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return unverifiedClaims(claims), nil
}
