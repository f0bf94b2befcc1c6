package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/butcherhub/orders/internal/domain/auth"
	"github.com/butcherhub/orders/internal/domain/order"
)

// principalClaims is the claim set the upstream auth service mints.
type principalClaims struct {
	Role     string `json:"role"`
	VendorID string `json:"vendor_id,omitempty"`
	jwt.RegisteredClaims
}

// authenticate resolves the bearer token into a request-scoped principal.
// There is no anonymous fallback: requests without a valid token are
// rejected before they reach any cart or order operation. WebSocket clients
// that cannot set headers pass the token as a query parameter instead.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondErrorCode(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		p, err := h.parsePrincipal(token)
		if err != nil {
			respondErrorCode(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func (h *Handler) parsePrincipal(token string) (auth.Principal, error) {
	var claims principalClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return auth.Principal{}, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return auth.Principal{}, auth.ErrUnauthenticated
	}

	return auth.Principal{
		UserID:   claims.Subject,
		Role:     claims.Role,
		VendorID: claims.VendorID,
	}, nil
}

// requireVendor extracts the principal and checks it acts for a vendor.
func requireVendor(r *http.Request) (auth.Principal, error) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		return auth.Principal{}, err
	}
	if !p.IsVendor() {
		return auth.Principal{}, order.ErrUnauthorized
	}
	return p, nil
}
