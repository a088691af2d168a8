package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/patrickmn/go-cache"
)

// ErrTokenExpired токен оператора истек
var ErrTokenExpired = errors.New("operator token expired")

// KeycloakConfig конфигурация для Keycloak
type KeycloakConfig struct {
	ServerURL string
	Realm     string
	ClientID  string
}

// KeycloakClaims представляет собой структуру claims из токена Keycloak
type KeycloakClaims struct {
	UserID      string `json:"sub"`
	Username    string `json:"preferred_username"`
	Email       string `json:"email"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	ResourceAccess map[string]struct {
		Roles []string `json:"roles"`
	} `json:"resource_access"`
}

// Operator имя оператора для журнала: логин, а без него sub
func (c *KeycloakClaims) Operator() string {
	if c.Username != "" {
		return c.Username
	}
	return c.UserID
}

// TokenVerifier проверяет подпись токена и возвращает его claims и срок действия
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*KeycloakClaims, time.Time, error)
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v oidcVerifier) Verify(ctx context.Context, rawToken string) (*KeycloakClaims, time.Time, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, time.Time{}, err
	}

	var claims KeycloakClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, time.Time{}, fmt.Errorf("ошибка извлечения claims: %w", err)
	}
	return &claims, idToken.Expiry, nil
}

// KeycloakClient проверяет входящие токены операторов синхронизации
type KeycloakClient struct {
	verifier   TokenVerifier
	tokenCache *cache.Cache
	clientID   string

	// now источник времени, подменяется в тестах
	now func() time.Time
}

// NewKeycloakClient создает клиент, загружая ключи realm через OIDC discovery
func NewKeycloakClient(ctx context.Context, cfg KeycloakConfig) (*KeycloakClient, error) {
	providerURL := fmt.Sprintf("%s/realms/%s", cfg.ServerURL, cfg.Realm)

	provider, err := oidc.NewProvider(ctx, providerURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания OIDC провайдера: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        cfg.ClientID,
		SkipIssuerCheck: true,
	})

	return NewKeycloakClientWithVerifier(oidcVerifier{verifier: verifier}, cfg.ClientID), nil
}

// NewKeycloakClientWithVerifier создает клиент с заданным верификатором
func NewKeycloakClientWithVerifier(verifier TokenVerifier, clientID string) *KeycloakClient {
	return &KeycloakClient{
		verifier:   verifier,
		tokenCache: cache.New(5*time.Minute, 10*time.Minute),
		clientID:   clientID,
		now:        time.Now,
	}
}

// ValidateToken проверяет токен и возвращает claims.
// Проверенные claims кэшируются до истечения токена
func (k *KeycloakClient) ValidateToken(ctx context.Context, tokenString string) (*KeycloakClaims, error) {
	if cachedClaims, found := k.tokenCache.Get(tokenString); found {
		return cachedClaims.(*KeycloakClaims), nil
	}

	claims, expiry, err := k.verifier.Verify(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("ошибка верификации токена: %w", err)
	}

	expiresIn := expiry.Sub(k.now())
	if !expiry.IsZero() && expiresIn <= 0 {
		return nil, ErrTokenExpired
	}
	if expiresIn > 0 {
		k.tokenCache.Set(tokenString, claims, expiresIn)
	}

	return claims, nil
}

// HasRole проверяет наличие роли realm или роли клиента
func (k *KeycloakClient) HasRole(claims *KeycloakClaims, role string) bool {
	for _, r := range claims.RealmAccess.Roles {
		if r == role {
			return true
		}
	}

	if clientRoles, exists := claims.ResourceAccess[k.clientID]; exists {
		for _, r := range clientRoles.Roles {
			if r == role {
				return true
			}
		}
	}

	return false
}

// HasAnyRole проверяет наличие хотя бы одной роли из списка
func (k *KeycloakClient) HasAnyRole(claims *KeycloakClaims, roles ...string) bool {
	for _, role := range roles {
		if k.HasRole(claims, role) {
			return true
		}
	}
	return false
}
