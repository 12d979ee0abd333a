package dispatch

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/viant/scy"
	"github.com/viant/scy/cred"
	"github.com/viant/toolbox"

	"github.com/taskgrid/taskgrid/cache"
	"github.com/taskgrid/taskgrid/model"
)

// DefaultCredentialsTTL bounds how long a resolved Authorization header is
// reused before the secret is loaded again.
const DefaultCredentialsTTL = 5 * time.Minute

// AuthProvider resolves endpoint credentials into Authorization headers.
// Secrets are loaded with scy from the endpoint's credentials URL and the
// resolved header is cached, so dispatch attempts do not pay the secret
// round trip. Structured credentials become basic auth, raw secrets a bearer
// token.
type AuthProvider struct {
	secrets *scy.Service
	headers *cache.Cache[string, string]
}

// AuthOption customises the provider.
type AuthOption func(*authOptions)

type authOptions struct {
	ttl time.Duration
}

// WithCredentialsTTL overrides how long resolved headers are cached.
func WithCredentialsTTL(ttl time.Duration) AuthOption {
	return func(o *authOptions) { o.ttl = ttl }
}

// NewAuthProvider creates a scy backed credential resolver.
func NewAuthProvider(options ...AuthOption) *AuthProvider {
	opts := &authOptions{ttl: DefaultCredentialsTTL}
	for _, option := range options {
		option(opts)
	}
	return &AuthProvider{
		secrets: scy.New(),
		headers: cache.New[string, string](opts.ttl),
	}
}

// Authorize sets the Authorization header for an endpoint when it declares
// credentials; endpoints without credentials pass through untouched.
func (p *AuthProvider) Authorize(ctx context.Context, request *http.Request, endpoint *model.ServiceEndpoint) error {
	if p == nil || endpoint == nil || endpoint.CredentialsURL == "" {
		return nil
	}
	header, _, err := p.headers.Load(ctx, endpoint.CredentialsURL, func(ctx context.Context, _ string) (string, error) {
		return p.resolve(ctx, endpoint)
	})
	if err != nil {
		return err
	}
	if header != "" {
		request.Header.Set("Authorization", header)
	}
	return nil
}

func (p *AuthProvider) resolve(ctx context.Context, endpoint *model.ServiceEndpoint) (string, error) {
	var target interface{}
	if endpoint.CredentialsTarget != "" && endpoint.CredentialsTarget != "raw" {
		targetType, err := cred.TargetType(endpoint.CredentialsTarget)
		if err != nil {
			return "", fmt.Errorf("invalid credentials target %q for %v: %w", endpoint.CredentialsTarget, endpoint.Key(), err)
		}
		if targetType != nil {
			target = targetType
		}
	}
	resource := scy.NewResource(target, endpoint.CredentialsURL, endpoint.CredentialsKey)
	secret, err := p.secrets.Load(ctx, resource)
	if err != nil {
		return "", fmt.Errorf("failed to load credentials from %v: %w", endpoint.CredentialsURL, err)
	}

	if !secret.IsPlain && secret.Target != nil {
		aMap := map[string]interface{}{}
		if err := toolbox.DefaultConverter.AssignConverted(&aMap, secret.Target); err != nil {
			return "", fmt.Errorf("failed to convert credentials from %v: %w", endpoint.CredentialsURL, err)
		}
		aMap = toolbox.DeleteEmptyKeys(aMap)
		if username, password, ok := basicPair(aMap); ok {
			return basicAuthHeader(username, password), nil
		}
	}
	token := strings.TrimSpace(secret.String())
	if token == "" {
		return "", nil
	}
	return "Bearer " + token, nil
}

// basicPair extracts username/password from converted credential data.
func basicPair(aMap map[string]interface{}) (string, string, bool) {
	var username, password string
	for key, value := range aMap {
		text, ok := value.(string)
		if !ok {
			continue
		}
		switch {
		case strings.EqualFold(key, "username"):
			username = text
		case strings.EqualFold(key, "password"):
			password = text
		}
	}
	if username == "" {
		return "", "", false
	}
	return username, password, true
}

func basicAuthHeader(username, password string) string {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token
}
