package config

import (
	"github.com/athebyme/gomarket-inventory/pkg/auth"
)

// KeycloakConfig представляет конфигурацию Keycloak для API синхронизации
type KeycloakConfig struct {
	Enabled   bool
	ServerURL string
	Realm     string
	ClientID  string
	// Roles роли, любая из которых дает доступ к операциям синхронизации
	Roles []string
}

// GetKeycloakConfig возвращает конфигурацию для auth.KeycloakClient
func (k *KeycloakConfig) GetKeycloakConfig() auth.KeycloakConfig {
	return auth.KeycloakConfig{
		ServerURL: k.ServerURL,
		Realm:     k.Realm,
		ClientID:  k.ClientID,
	}
}
