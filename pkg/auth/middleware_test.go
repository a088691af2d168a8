package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
func (nopLogger) DebugWithContext(context.Context, string, ...interface{}) {}
func (nopLogger) InfoWithContext(context.Context, string, ...interface{}) {}
func (nopLogger) WarnWithContext(context.Context, string, ...interface{}) {}
func (nopLogger) ErrorWithContext(context.Context, string, ...interface{}) {}
func (l nopLogger) WithFields(...interfaces.LogField) interfaces.LoggerPort { return l }
func (l nopLogger) WithField(string, interface{}) interfaces.LoggerPort { return l }
func (l nopLogger) WithJob(string) interfaces.LoggerPort { return l }
func (nopLogger) Sync() error { return nil }

type fakeVerifier struct {
	tokens map[string]*KeycloakClaims
	expiry time.Time
	calls  int
}

func (v *fakeVerifier) Verify(_ context.Context, raw string) (*KeycloakClaims, time.Time, error) {
	v.calls++
	claims, ok := v.tokens[raw]
	if !ok {
		return nil, time.Time{}, errors.New("signature mismatch")
	}
	return claims, v.expiry, nil
}

func operatorClaims(username string, realmRoles ...string) *KeycloakClaims {
	c := &KeycloakClaims{UserID: "sub-" + username, Username: username}
	c.RealmAccess.Roles = realmRoles
	return c
}

func newTestClient(v *fakeVerifier) *KeycloakClient {
	return NewKeycloakClientWithVerifier(v, "inventory-sync")
}

func protected(kc *KeycloakClient, roles ...string) (http.Handler, *string) {
	var operator string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator, _ = r.Context().Value(interfaces.OperatorKey).(string)
		w.WriteHeader(http.StatusNoContent)
	})
	var handler http.Handler = h
	if len(roles) > 0 {
		handler = RequireAnyRole(kc, roles...)(handler)
	}
	return AuthMiddleware(kc, nopLogger{})(handler), &operator
}

func call(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/trigger", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	v := &fakeVerifier{
		tokens: map[string]*KeycloakClaims{"good": operatorClaims("ivanov", "inventory-operator")},
		expiry: time.Now().Add(time.Hour),
	}
	h, operator := protected(newTestClient(v))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"без заголовка", "", http.StatusUnauthorized},
		{"другая схема", "Basic Z29vZA==", http.StatusUnauthorized},
		{"пустой токен", "Bearer ", http.StatusUnauthorized},
		{"неизвестный токен", "Bearer forged", http.StatusUnauthorized},
		{"валидный токен", "Bearer good", http.StatusNoContent},
		{"схема в нижнем регистре", "bearer good", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(h, tt.header)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, "ivanov", *operator)
}

func TestRequireAnyRole(t *testing.T) {
	v := &fakeVerifier{
		tokens: map[string]*KeycloakClaims{
			"operator": operatorClaims("ivanov", "inventory-operator"),
			"viewer":   operatorClaims("petrov", "viewer"),
		},
		expiry: time.Now().Add(time.Hour),
	}
	kc := newTestClient(v)
	h, _ := protected(kc, "inventory-operator", "inventory-admin")

	assert.Equal(t, http.StatusNoContent, call(h, "Bearer operator").Code)

	rec := call(h, "Bearer viewer")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"forbidden"`)
}

func TestClientRoleCounts(t *testing.T) {
	kc := newTestClient(&fakeVerifier{})
	claims := operatorClaims("sidorov")
	claims.ResourceAccess = map[string]struct {
		Roles []string `json:"roles"`
	}{
		"inventory-sync": {Roles: []string{"inventory-admin"}},
		"other-client":   {Roles: []string{"inventory-operator"}},
	}

	assert.True(t, kc.HasRole(claims, "inventory-admin"))
	assert.False(t, kc.HasRole(claims, "inventory-operator"))
}

func TestValidateTokenCachesClaims(t *testing.T) {
	v := &fakeVerifier{
		tokens: map[string]*KeycloakClaims{"good": operatorClaims("ivanov")},
		expiry: time.Now().Add(time.Hour),
	}
	kc := newTestClient(v)

	for i := 0; i < 3; i++ {
		claims, err := kc.ValidateToken(context.Background(), "good")
		require.NoError(t, err)
		assert.Equal(t, "ivanov", claims.Operator())
	}
	assert.Equal(t, 1, v.calls)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	v := &fakeVerifier{
		tokens: map[string]*KeycloakClaims{"old": operatorClaims("ivanov")},
		expiry: time.Now().Add(-time.Minute),
	}

	_, err := newTestClient(v).ValidateToken(context.Background(), "old")
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestOperatorFallsBackToSubject(t *testing.T) {
	assert.Equal(t, "sub-1", (&KeycloakClaims{UserID: "sub-1"}).Operator())
}
