package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	doci "github.com/fronsciers/doci-gateway"
	"github.com/fronsciers/doci-gateway/internal/domain"
	"github.com/fronsciers/doci-gateway/jwt"
)

var tracer = otel.Tracer("auth")

type AuthService struct {
	config *domain.Config
}

func NewAuthService(config *domain.Config) *AuthService {
	return &AuthService{config: config}
}

type AuthResult struct {
	Account string
}

// AuthToken validates a DOCI1 bearer token and returns the requester account.
// The signature is recoverable, so no key registry lookup is needed; jwt
// validation already checked the recovered signer against the issuer claim.
func (s *AuthService) AuthToken(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthToken")
	defer span.End()

	_, claims, err := jwt.Validate(token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if claims.Audience != s.config.FQDN {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", s.config.FQDN, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject != "doci" {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	if !doci.IsAccountID(claims.Issuer) {
		err := fmt.Errorf("invalid issuer account")
		span.RecordError(err)
		return nil, err
	}

	return &AuthResult{Account: claims.Issuer}, nil
}
