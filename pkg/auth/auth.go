// Package auth turns a login tuple into a Salesforce session. Every node
// authenticates once at the start of its run; sessions are never cached or
// refreshed, and a failed login is never retried.
package auth

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/clients"
	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce"
)

// Credentials is the login tuple for one run.
type Credentials struct {
	Username      string
	Password      string
	SecurityToken string
	// Domain is "login", "test", a My Domain prefix, or a full base URL
	Domain       string
	ClientID     string
	ClientSecret string
}

// String hides every secret.
func (c Credentials) String() string {
	return "Credentials{Username:" + c.Username + ", Domain:" + c.Domain + "}"
}

// Authenticator creates a session from credentials. Any failure is an
// error of type ErrorTypeAuthentication.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*salesforce.Session, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, creds Credentials) (*salesforce.Session, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, creds Credentials) (*salesforce.Session, error) {
	return f(ctx, creds)
}

// CredentialsFromConfig copies the credentials section.
func CredentialsFromConfig(c config.CredentialsConfig) Credentials {
	return Credentials{
		Username:      c.Username,
		Password:      c.Password,
		SecurityToken: c.SecurityToken,
		Domain:        c.Domain,
		ClientID:      c.ClientID,
		ClientSecret:  c.ClientSecret,
	}
}

// LoginURL resolves a domain to the login base URL. Values that already
// are URLs are used as they are.
func LoginURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		domain = "login"
	}
	if strings.Contains(domain, "://") {
		return strings.TrimRight(domain, "/")
	}
	return "https://" + strings.TrimSuffix(domain, ".salesforce.com") + ".salesforce.com"
}

// New picks the OAuth2 password flow when a client id and secret are
// configured and the SOAP login otherwise.
func New(cfg *config.BaseConfig, httpClient *clients.HTTPClient, logger *zap.Logger) Authenticator {
	version := cfg.Salesforce.APIVersionOrDefault()
	if cfg.Credentials.UsesOAuth2() {
		return NewOAuth2Authenticator(version, httpClient, logger)
	}
	return NewSOAPAuthenticator(version, httpClient, logger)
}
