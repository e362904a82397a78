package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ajitpratap0/forcebridge/pkg/clients"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/logger"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce"
)

// OAuth2Authenticator logs in with the OAuth 2.0 username-password flow of
// a connected app.
type OAuth2Authenticator struct {
	apiVersion string
	http       *clients.HTTPClient
	logger     *zap.Logger
}

// NewOAuth2Authenticator creates an OAuth2 authenticator for apiVersion.
func NewOAuth2Authenticator(apiVersion string, httpClient *clients.HTTPClient, log *zap.Logger) *OAuth2Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = clients.NewHTTPClient(nil, log)
	}
	return &OAuth2Authenticator{
		apiVersion: strings.TrimPrefix(apiVersion, "v"),
		http:       httpClient,
		logger:     log.With(zap.String("component", "oauth2_login")),
	}
}

// Authenticate exchanges the login tuple for an access token.
func (a *OAuth2Authenticator) Authenticate(ctx context.Context, creds Credentials) (*salesforce.Session, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.New(errors.ErrorTypeAuthentication, "oauth2 login needs a client id and secret")
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  LoginURL(creds.Domain) + "/services/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	a.logger.Debug("requesting token",
		zap.String("username", creds.Username),
		zap.String("endpoint", conf.Endpoint.TokenURL))

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.http.StandardClient())
	tok, err := conf.PasswordCredentialsToken(ctx, creds.Username, creds.Password+creds.SecurityToken)
	if err != nil {
		a.logger.Warn("token request failed", logger.MaskedError(err))
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			apiErr := salesforce.ParseAPIError(re.Response.StatusCode, re.Body)
			return nil, errors.Wrap(apiErr, errors.ErrorTypeAuthentication, "salesforce login failed").
				WithDetail("error_code", apiErr.Code())
		}
		return nil, errors.Wrap(errors.Wrap(err, errors.ErrorTypeConnection, "token request failed"),
			errors.ErrorTypeAuthentication, "salesforce login failed")
	}

	instance, _ := tok.Extra("instance_url").(string)
	if instance == "" {
		return nil, errors.New(errors.ErrorTypeAuthentication, "token response carries no instance_url")
	}

	issued := time.Now()
	if raw, ok := tok.Extra("issued_at").(string); ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			issued = time.UnixMilli(ms)
		}
	}

	a.logger.Info("logged in", zap.String("instance", instance))
	return &salesforce.Session{
		ID:          tok.AccessToken,
		InstanceURL: strings.TrimRight(instance, "/"),
		APIVersion:  a.apiVersion,
		IssuedAt:    issued,
	}, nil
}
