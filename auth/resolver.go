package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
)

var _ contract.IdentityResolver = (*Resolver)(nil)

// Resolver turns the token negotiated at handshake into an identity.
// A missing, expired or invalid token yields the anonymous identity:
// whether anonymous is acceptable is the gateway's decision.
type Resolver struct {
	log    *slog.Logger
	signer *Signer
}

func NewResolver(log *slog.Logger, signer *Signer) *Resolver {
	return &Resolver{log: log, signer: signer}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Anonymous(), err
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return domain.Anonymous(), nil
	}

	claims, err := r.signer.ValidateToken(token)
	if err != nil {
		r.log.Debug("Token rejected, falling back to anonymous", "error", err)
		return domain.Anonymous(), nil
	}
	return domain.NewIdentity(domain.UserID(claims.UserID), claims.Name), nil
}

// TokenFromSubprotocols extracts the bearer token from a Sec-WebSocket-Protocol header.
// Browsers can't set an Authorization header on a WebSocket, so the first offered
// sub-protocol carries the token.
func TokenFromSubprotocols(header string) string {
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}
