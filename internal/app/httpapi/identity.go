package httpapi

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skymaintain/service-layer/internal/app/rbac"
)

// IdentityResolver produces the authenticated actor for a request. The core
// services only ever see the resolved actor, never the transport.
type IdentityResolver interface {
	Resolve(r *http.Request) rbac.Actor
}

// HeaderResolver reads identity from the X-User-Id / X-User-Role / X-Org-Id
// headers the upstream proxy sets. When a JWT verification key is configured,
// a bearer token takes precedence over the headers. A request with neither
// resolves to the anonymous Viewer.
type HeaderResolver struct {
	jwtKey []byte
}

// NewHeaderResolver builds the default resolver. jwtKey may be nil to disable
// bearer-token resolution.
func NewHeaderResolver(jwtKey []byte) *HeaderResolver {
	return &HeaderResolver{jwtKey: jwtKey}
}

type identityClaims struct {
	Role  string `json:"role"`
	OrgID string `json:"orgId"`
	jwt.RegisteredClaims
}

func (hr *HeaderResolver) Resolve(r *http.Request) rbac.Actor {
	if len(hr.jwtKey) > 0 {
		if actor, ok := hr.resolveBearer(r); ok {
			return actor
		}
	}

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return rbac.Anonymous()
	}
	role := r.Header.Get("X-User-Role")
	if rbac.Priority(role) == 0 {
		role = rbac.RoleViewer
	}
	return rbac.Actor{
		UserID: userID,
		Role:   role,
		OrgID:  r.Header.Get("X-Org-Id"),
	}
}

func (hr *HeaderResolver) resolveBearer(r *http.Request) (rbac.Actor, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return rbac.Actor{}, false
	}

	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return hr.jwtKey, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return rbac.Actor{}, false
	}

	role := claims.Role
	if rbac.Priority(role) == 0 {
		role = rbac.RoleViewer
	}
	return rbac.Actor{UserID: claims.Subject, Role: role, OrgID: claims.OrgID}, true
}
