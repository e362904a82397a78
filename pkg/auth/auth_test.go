package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce/sftest"
)

func validCreds(org *sftest.Org) Credentials {
	return Credentials{
		Username:      sftest.Username,
		Password:      sftest.Password,
		SecurityToken: sftest.SecurityToken,
		Domain:        org.URL(),
	}
}

func TestLoginURL(t *testing.T) {
	tests := map[string]string{
		"":                         "https://login.salesforce.com",
		"login":                    "https://login.salesforce.com",
		"test":                     "https://test.salesforce.com",
		"acme.my":                  "https://acme.my.salesforce.com",
		"acme.my.salesforce.com":   "https://acme.my.salesforce.com",
		"http://127.0.0.1:8080/":   "http://127.0.0.1:8080",
		" https://acme.example.io": "https://acme.example.io",
	}
	for in, want := range tests {
		assert.Equal(t, want, LoginURL(in), in)
	}
}

func TestSOAPAuthenticate(t *testing.T) {
	org := sftest.New(t)
	a := NewSOAPAuthenticator("v59.0", nil, zaptest.NewLogger(t))
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	session, err := a.Authenticate(context.Background(), validCreds(org))
	require.NoError(t, err)

	assert.Equal(t, sftest.SessionID, session.ID)
	assert.Equal(t, org.URL(), session.InstanceURL)
	assert.Equal(t, "59.0", session.APIVersion)
	assert.Equal(t, fixed, session.IssuedAt)

	calls := org.CallsFor(sftest.OpLogin)
	require.Len(t, calls, 1)
	assert.Equal(t, "/services/Soap/u/59.0", calls[0].Path)
	assert.Contains(t, string(calls[0].Body), "<n1:password>"+sftest.Password+sftest.SecurityToken+"</n1:password>")
}

func TestSOAPAuthenticateEscapesXML(t *testing.T) {
	org := sftest.New(t)
	creds := validCreds(org)
	creds.Password = `p<&>"`

	_, err := NewSOAPAuthenticator("59.0", nil, nil).Authenticate(context.Background(), creds)
	require.Error(t, err)

	body := string(org.CallsFor(sftest.OpLogin)[0].Body)
	assert.Contains(t, body, "p&lt;&amp;&gt;&#34;")
}

func TestSOAPAuthenticateInvalidLogin(t *testing.T) {
	org := sftest.New(t)
	creds := validCreds(org)
	creds.SecurityToken = "wrong"

	session, err := NewSOAPAuthenticator("59.0", nil, nil).Authenticate(context.Background(), creds)
	require.Error(t, err)
	assert.Nil(t, session)
	assert.Equal(t, errors.ErrorTypeAuthentication, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "INVALID_LOGIN")
	assert.NotContains(t, err.Error(), sftest.Password)

	var typed *errors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "INVALID_LOGIN", typed.Details["fault_code"])
	assert.Len(t, org.Calls(), 1, "no retry")
}

func TestSOAPAuthenticateUnreachable(t *testing.T) {
	creds := Credentials{Username: "u", Password: "p", Domain: "http://127.0.0.1:1"}
	_, err := NewSOAPAuthenticator("59.0", nil, nil).Authenticate(context.Background(), creds)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthentication, errors.TypeOf(err))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestOAuth2Authenticate(t *testing.T) {
	org := sftest.New(t)
	creds := validCreds(org)
	creds.ClientID = sftest.ClientID
	creds.ClientSecret = sftest.ClientSecret

	session, err := NewOAuth2Authenticator("59.0", nil, zaptest.NewLogger(t)).Authenticate(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, sftest.SessionID, session.ID)
	assert.Equal(t, org.URL(), session.InstanceURL)
	assert.Equal(t, int64(1700000000000), session.IssuedAt.UnixMilli())

	calls := org.CallsFor(sftest.OpToken)
	require.Len(t, calls, 1)
	assert.Contains(t, string(calls[0].Body), "grant_type=password")
}

func TestOAuth2AuthenticateBadGrant(t *testing.T) {
	org := sftest.New(t)
	creds := validCreds(org)
	creds.ClientID = sftest.ClientID
	creds.ClientSecret = sftest.ClientSecret
	creds.Password = "nope"

	_, err := NewOAuth2Authenticator("59.0", nil, nil).Authenticate(context.Background(), creds)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthentication, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestOAuth2AuthenticateRequiresClient(t *testing.T) {
	_, err := NewOAuth2Authenticator("59.0", nil, nil).Authenticate(context.Background(), Credentials{Username: "u"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthentication, errors.TypeOf(err))
}

func TestNewPicksFlow(t *testing.T) {
	cfg := config.NewBaseConfig("x", config.KindMetadata)
	_, ok := New(cfg, nil, nil).(*SOAPAuthenticator)
	assert.True(t, ok)

	cfg.Credentials.ClientID = "id"
	cfg.Credentials.ClientSecret = "secret"
	_, ok = New(cfg, nil, nil).(*OAuth2Authenticator)
	assert.True(t, ok)
}

func TestCredentialsStringHidesSecrets(t *testing.T) {
	c := CredentialsFromConfig(config.CredentialsConfig{
		Username: "ops@example.com", Password: "pw-1", SecurityToken: "tok-2", ClientSecret: "cs-3", Domain: "test",
	})
	s := c.String()
	assert.True(t, strings.Contains(s, "ops@example.com"))
	for _, secret := range []string{"pw-1", "tok-2", "cs-3"} {
		assert.NotContains(t, s, secret)
	}
}
