package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// OperatorAudience is the only audience the reconciliation endpoints accept.
const OperatorAudience = "storefront-reconciliation"

// OperatorTokenPayload captures the data available when minting an operator JWT.
type OperatorTokenPayload struct {
	Subject string
	Role    enums.OperatorRole
	JTI     string
}

// OperatorClaims represents the typed JWT presented to the back-office endpoints.
type OperatorClaims struct {
	Role enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims are checked during parsing.
func (c OperatorClaims) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return ErrSubjectRequired
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("%w %q", ErrInvalidRole, c.Role)
	}
	return nil
}
