package model

import (
	"fmt"
	"net/url"
	"time"
)

// ServiceKey identifies a logical execution service.
type ServiceKey struct {
	Type string `json:"type" yaml:"type"`
	Name string `json:"name" yaml:"name"`
}

// String returns the canonical type/name form used in logs and errors.
func (k ServiceKey) String() string {
	return k.Type + "/" + k.Name
}

// ServiceEndpoint describes a reachable instance of an execution service.
type ServiceEndpoint struct {
	ServiceType    string    `json:"serviceType" yaml:"serviceType"`
	ServiceName    string    `json:"serviceName" yaml:"serviceName"`
	BaseURL        string    `json:"baseURL" yaml:"baseURL"`
	Capabilities   []string  `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Healthy        bool      `json:"healthy" yaml:"healthy"`
	LastSeen       time.Time `json:"lastSeen,omitempty" yaml:"lastSeen,omitempty"`
	CredentialsURL string    `json:"credentialsURL,omitempty" yaml:"credentialsURL,omitempty"`
	// CredentialsTarget names the credential shape stored at CredentialsURL
	// ('raw', 'basic', 'generic'); empty means raw.
	CredentialsTarget string `json:"credentialsTarget,omitempty" yaml:"credentialsTarget,omitempty"`
	CredentialsKey    string `json:"credentialsKey,omitempty" yaml:"credentialsKey,omitempty"`
}

// Key returns the logical service identity of the endpoint.
func (e *ServiceEndpoint) Key() ServiceKey {
	return ServiceKey{Type: e.ServiceType, Name: e.ServiceName}
}

// HasCapability returns true when the endpoint advertises the capability.
func (e *ServiceEndpoint) HasCapability(name string) bool {
	for _, candidate := range e.Capabilities {
		if candidate == name {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own capabilities slice.
func (e *ServiceEndpoint) Clone() *ServiceEndpoint {
	if e == nil {
		return nil
	}
	result := *e
	if len(e.Capabilities) > 0 {
		result.Capabilities = append([]string(nil), e.Capabilities...)
	}
	return &result
}

// Validate checks the endpoint identity and base URL.
func (e *ServiceEndpoint) Validate() error {
	if e == nil {
		return fmt.Errorf("endpoint was empty")
	}
	if e.ServiceType == "" {
		return fmt.Errorf("serviceType was empty")
	}
	if e.ServiceName == "" {
		return fmt.Errorf("serviceName was empty, service type: %v", e.ServiceType)
	}
	if e.BaseURL == "" {
		return fmt.Errorf("baseURL was empty, service: %v", e.Key())
	}
	parsed, err := url.Parse(e.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL %v: %w", e.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported baseURL scheme %v, service: %v", parsed.Scheme, e.Key())
	}
	return nil
}
