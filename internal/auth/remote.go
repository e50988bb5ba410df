// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/samber/oops"
)

// DefaultConnectTimeout bounds the TCP connect to the remote identity
// endpoint. Total read time is left to the transport.
const DefaultConnectTimeout = 1500 * time.Millisecond

// RemoteConfig parameterizes the JSON callout provider. The field names
// map onto whatever schema the remote endpoint expects.
type RemoteConfig struct {
	URL                string        `koanf:"url"`
	UserField          string        `koanf:"user_field"`
	PassField          string        `koanf:"pass_field"`
	IPField            string        `koanf:"ip_field"`
	ResponseUserField  string        `koanf:"response_user_field"`
	ResponseErrorField string        `koanf:"response_error_field"`
	ConnectTimeout     time.Duration `koanf:"connect_timeout"`
}

// RemoteProvider verifies credentials by POSTing them as JSON to a
// configured endpoint and reading the resolved username back.
type RemoteProvider struct {
	cfg    RemoteConfig
	client *http.Client
}

// NewRemoteProvider validates cfg and builds the HTTP client.
func NewRemoteProvider(cfg RemoteConfig) (*RemoteProvider, error) {
	if cfg.URL == "" {
		return nil, oops.Code("AUTH_REMOTE_CONFIG").Errorf("remote auth URL cannot be empty")
	}
	for name, v := range map[string]string{
		"user_field":           cfg.UserField,
		"pass_field":           cfg.PassField,
		"ip_field":             cfg.IPField,
		"response_user_field":  cfg.ResponseUserField,
		"response_error_field": cfg.ResponseErrorField,
	} {
		if v == "" {
			return nil, oops.Code("AUTH_REMOTE_CONFIG").Errorf("remote auth %s cannot be empty", name)
		}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	return &RemoteProvider{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			},
		},
	}, nil
}

// Authenticate POSTs the credentials and interprets the response as a
// JSON object carrying either the resolved username or an error message.
// Non-2xx statuses are not fatal: their bodies are parsed the same way.
func (p *RemoteProvider) Authenticate(ctx context.Context, login, password, ip string) (*Result, error) {
	payload, err := json.Marshal(map[string]string{
		p.cfg.UserField: login,
		p.cfg.PassField: password,
		p.cfg.IPField:   ip,
	})
	if err != nil {
		return nil, oops.Code("AUTH_REMOTE_ENCODE_FAILED").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, oops.Code("AUTH_REMOTE_REQUEST_FAILED").With("url", p.cfg.URL).Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, oops.Code("AUTH_REMOTE_UNREACHABLE").With("url", p.cfg.URL).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, Reject("Authentication server response is malformed")
	}

	if username, ok := body[p.cfg.ResponseUserField].(string); ok {
		token, err := GenerateAccessToken()
		if err != nil {
			return nil, err
		}
		return &Result{Username: username, AccessToken: token}, nil
	}
	if message, ok := body[p.cfg.ResponseErrorField].(string); ok {
		return nil, Reject("%s", message)
	}
	return nil, Reject("Authentication server response is malformed")
}

// Close implements Provider.
func (p *RemoteProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Compile-time interface check.
var _ Provider = (*RemoteProvider)(nil)
