package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"golang.org/x/oauth2"
)

// ExpirySkew токен, истекающий раньше чем через это время, считается уже истекшим
const ExpirySkew = 5 * time.Minute

// StaticTokenProvider отдает заранее выданный токен, пока он не истекает.
// Сам ничего не обновляет
type StaticTokenProvider struct {
	token     string
	expiresAt time.Time
	logger    interfaces.LoggerPort

	// Now источник времени, подменяется в тестах
	Now func() time.Time
}

// NewStaticTokenProvider создает провайдер. Срок действия берется из claims JWT;
// непрозрачный токен без срока считается бессрочным
func NewStaticTokenProvider(token string, logger interfaces.LoggerPort) (*StaticTokenProvider, error) {
	p := &StaticTokenProvider{
		token:  token,
		logger: logger,
		Now:    time.Now,
	}

	if token != "" && LooksLikeJWT(token) {
		info, err := InspectToken(token)
		if err != nil {
			return nil, err
		}
		p.expiresAt = info.ExpiresAt
		logger.Info("Токен внешнего API загружен",
			interfaces.LogField{Key: "expires_at", Value: info.ExpiresAt},
			interfaces.LogField{Key: "subject", Value: info.Subject},
		)
	}

	return p, nil
}

// GetValidAccessToken возвращает токен или AuthExpiredError
func (p *StaticTokenProvider) GetValidAccessToken(_ context.Context) (string, error) {
	if p.token == "" {
		return "", &pkgerrors.AuthExpiredError{Source: "static", Detail: "token is not configured"}
	}
	if err := checkExpiry("static", p.expiresAt, p.Now()); err != nil {
		return "", err
	}
	return p.token, nil
}

// OAuth2TokenProvider получает токен через refresh_token grant.
// Обновлением занимается oauth2.TokenSource; ошибки обновления означают истекшую авторизацию
type OAuth2TokenProvider struct {
	mu     sync.Mutex
	source oauth2.TokenSource
	logger interfaces.LoggerPort

	// Now источник времени, подменяется в тестах
	Now func() time.Time
}

// OAuth2Config параметры обновления токена
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// NewOAuth2TokenProvider создает провайдер поверх refresh token
func NewOAuth2TokenProvider(ctx context.Context, cfg OAuth2Config, logger interfaces.LoggerPort) *OAuth2TokenProvider {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}
	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return NewTokenSourceProvider(source, logger)
}

// NewTokenSourceProvider оборачивает произвольный oauth2.TokenSource
func NewTokenSourceProvider(source oauth2.TokenSource, logger interfaces.LoggerPort) *OAuth2TokenProvider {
	return &OAuth2TokenProvider{
		source: oauth2.ReuseTokenSource(nil, source),
		logger: logger,
		Now:    time.Now,
	}
}

// GetValidAccessToken возвращает действующий токен или AuthExpiredError
func (p *OAuth2TokenProvider) GetValidAccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.source.Token()
	if err != nil {
		p.logger.WarnWithContext(ctx, "Не удалось получить токен внешнего API",
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return "", &pkgerrors.AuthExpiredError{Source: "oauth2", Detail: err.Error()}
	}
	if token.AccessToken == "" {
		return "", &pkgerrors.AuthExpiredError{Source: "oauth2", Detail: "empty access token"}
	}
	if err := checkExpiry("oauth2", token.Expiry, p.Now()); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func checkExpiry(source string, expiresAt, now time.Time) error {
	if expiresAt.IsZero() {
		return nil
	}
	if remaining := expiresAt.Sub(now); remaining < ExpirySkew {
		return &pkgerrors.AuthExpiredError{
			Source: source,
			Detail: fmt.Sprintf("expires at %s", expiresAt.UTC().Format(time.RFC3339)),
		}
	}
	return nil
}
