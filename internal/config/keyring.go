package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "docgraph"

	// KeyringPasswordItem holds the Bolt password
	KeyringPasswordItem = "neo4j-password"

	// KeyringHTTPAuthItem holds the "user:password" pair for the HTTP extension
	KeyringHTTPAuthItem = "neo4j-http-auth"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger logrus.FieldLogger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: logrus.StandardLogger().WithField("component", "keyring"),
	}
}

// GetPassword retrieves the Bolt password; empty when not stored
func (km *KeyringManager) GetPassword() (string, error) {
	return km.get(KeyringPasswordItem)
}

// SetPassword stores the Bolt password
func (km *KeyringManager) SetPassword(password string) error {
	return km.set(KeyringPasswordItem, password)
}

// GetHTTPAuth retrieves the HTTP credential; empty when not stored
func (km *KeyringManager) GetHTTPAuth() (string, error) {
	return km.get(KeyringHTTPAuthItem)
}

// SetHTTPAuth stores the HTTP credential
func (km *KeyringManager) SetHTTPAuth(auth string) error {
	return km.set(KeyringHTTPAuthItem, auth)
}

// Delete removes a stored item; a missing item is not an error
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to delete from keychain")
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}

	km.logger.WithField("item", item).Info("credential deleted from keychain")
	return nil
}

// IsAvailable checks if OS keychain is available
// Returns false on headless systems (CI/CD) where keychain isn't available
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")

	// "not found" means the keychain answered
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.WithError(err).Debug("keychain not available")
		return false
	}

	return true
}

func (km *KeyringManager) get(item string) (string, error) {
	value, err := keyring.Get(KeyringService, item)
	if err == keyring.ErrNotFound {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to read from keychain")
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.WithField("item", item).Debug("credential retrieved from keychain")
	return value, nil
}

func (km *KeyringManager) set(item, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}

	if err := keyring.Set(KeyringService, item, value); err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to save to keychain")
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.WithFields(logrus.Fields{"service": KeyringService, "item": item}).Info("credential saved to keychain")
	return nil
}

// MaskSecret masks a secret for display
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 8 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:2], secret[len(secret)-2:])
}
