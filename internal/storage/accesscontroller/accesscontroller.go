// Package accesscontroller provides a concrete, optional implementation
// of the manifest's abstract accessController reference (spec.md §6):
// a bearer token whose claims name the log address and the operation
// the holder may perform against it.
package accesscontroller

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meshlog/oplogsync/internal/common"
)

// Operation names an action an access-controller claim can grant.
type Operation string

const (
	OpAppend Operation = "append"
	OpAdmin  Operation = "admin"
)

// Claims is the token's custom claim set: the registered claims plus
// the log address and operation the token grants.
type Claims struct {
	jwt.RegisteredClaims
	Address   string    `json:"address"`
	Operation Operation `json:"operation"`
}

// Controller issues and verifies capability tokens scoped to one log
// address and operation, signed with a shared secret key exactly as
// the teacher signs session tokens.
type Controller struct {
	secretKey []byte
}

// New builds a Controller around secretKey. The key is never logged or
// returned; callers are responsible for its provisioning.
func New(secretKey []byte) *Controller {
	return &Controller{secretKey: secretKey}
}

// Grant issues a token authorizing op against address, valid for ttl.
func (c *Controller) Grant(address string, op Operation, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Address:   address,
		Operation: op,
	})
	signed, err := token.SignedString(c.secretKey)
	if err != nil {
		return "", fmt.Errorf("accesscontroller: sign token: %w", err)
	}
	return signed, nil
}

// CanPerform reports whether tokenString grants op against address. A
// structurally invalid, expired, or wrongly-scoped token is reported as
// false with a nil error rather than surfaced as a parse error, since
// the caller only cares about the yes/no authorization outcome.
func (c *Controller) CanPerform(tokenString, address string, op Operation) (bool, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secretKey, nil
	})
	if err != nil || !token.Valid {
		return false, nil
	}
	if claims.Address != address {
		return false, nil
	}
	if claims.Operation != op && claims.Operation != OpAdmin {
		return false, nil
	}
	return true, nil
}

// MustCanPerform is CanPerform for callers that want ErrUnauthorized as
// a returned error rather than a boolean.
func (c *Controller) MustCanPerform(tokenString, address string, op Operation) error {
	ok, err := c.CanPerform(tokenString, address, op)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("accesscontroller: %w", common.ErrUnauthorized)
	}
	return nil
}
