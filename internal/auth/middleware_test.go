package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims(userID uuid.UUID) Claims {
	return Claims{
		Sub:   userID.String(),
		Email: "dana@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func runMiddleware(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, uuid.UUID, *Claims) {
	t.Helper()
	var gotID uuid.UUID
	var gotClaims *Claims
	handler := NewJWTMiddleware(testSecret).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = UserIDFromContext(r.Context())
		gotClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, gotID, gotClaims
}

func TestAuthenticateValidToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, testSecret, validClaims(userID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, gotID, gotClaims := runMiddleware(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if gotID != userID {
		t.Fatalf("userID = %s, want %s", gotID, userID)
	}
	if gotClaims == nil || gotClaims.Email != "dana@example.com" {
		t.Fatalf("claims = %+v", gotClaims)
	}
}

func TestAuthenticateQueryParamToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, testSecret, validClaims(userID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/interviews/x/turn?access_token="+token, nil)

	rec, gotID, _ := runMiddleware(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotID != userID {
		t.Fatalf("userID = %s, want %s", gotID, userID)
	}
}

func TestAuthenticateMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rec, _, _ := runMiddleware(t, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateWrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", validClaims(uuid.New()))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, _, _ := runMiddleware(t, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	claims := validClaims(uuid.New())
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := signToken(t, testSecret, claims)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, _, _ := runMiddleware(t, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateNonUUIDSubject(t *testing.T) {
	claims := validClaims(uuid.New())
	claims.Sub = "not-a-uuid"
	token := signToken(t, testSecret, claims)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, _, _ := runMiddleware(t, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestUserIDFromContextUnauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := UserIDFromContext(req.Context()); id != uuid.Nil {
		t.Fatalf("id = %s, want Nil", id)
	}
}
