package model

import (
	"time"
)

// Routing property names recognised in definition extension elements and in
// documentation fallback metadata.
const (
	PropertyServiceType = "serviceType"
	PropertyServiceName = "serviceName"
	PropertyVersion     = "version"
	PropertyTimeoutMs   = "timeoutMs"
	PropertyRetryCount  = "retryCount"
)

// RoutingProperties carries routing metadata extracted from a process
// definition activity. Zero values mean the property was not declared.
type RoutingProperties struct {
	ServiceType string            `json:"serviceType,omitempty" yaml:"serviceType,omitempty"`
	ServiceName string            `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	Version     string            `json:"version,omitempty" yaml:"version,omitempty"`
	TimeoutMs   int               `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	RetryCount  *int              `json:"retryCount,omitempty" yaml:"retryCount,omitempty"`
	Extensions  map[string]string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// HasService returns true when both service identity properties are present.
func (p *RoutingProperties) HasService() bool {
	return p != nil && p.ServiceType != "" && p.ServiceName != ""
}

// Key returns the service identity the properties route to.
func (p *RoutingProperties) Key() ServiceKey {
	if p == nil {
		return ServiceKey{}
	}
	return ServiceKey{Type: p.ServiceType, Name: p.ServiceName}
}

// Timeout returns the per-activity timeout, or defaultTimeout when the
// definition did not declare one.
func (p *RoutingProperties) Timeout(defaultTimeout time.Duration) time.Duration {
	if p == nil || p.TimeoutMs <= 0 {
		return defaultTimeout
	}
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// Retries returns the per-activity retry budget, or defaultRetries when the
// definition did not declare one. A declared zero disables retries.
func (p *RoutingProperties) Retries(defaultRetries int) int {
	if p == nil || p.RetryCount == nil || *p.RetryCount < 0 {
		return defaultRetries
	}
	return *p.RetryCount
}

// Extension returns a non-routing extension property value.
func (p *RoutingProperties) Extension(name string) (string, bool) {
	if p == nil || len(p.Extensions) == 0 {
		return "", false
	}
	value, ok := p.Extensions[name]
	return value, ok
}

// Merged overlays the receiver on top of fallback: properties set on the
// receiver win, unset ones are taken from fallback.
func (p *RoutingProperties) Merged(fallback *RoutingProperties) *RoutingProperties {
	if p == nil {
		if fallback == nil {
			return nil
		}
		return fallback.Clone()
	}
	result := p.Clone()
	if fallback == nil {
		return result
	}
	if result.ServiceType == "" {
		result.ServiceType = fallback.ServiceType
	}
	if result.ServiceName == "" {
		result.ServiceName = fallback.ServiceName
	}
	if result.Version == "" {
		result.Version = fallback.Version
	}
	if result.TimeoutMs <= 0 {
		result.TimeoutMs = fallback.TimeoutMs
	}
	if result.RetryCount == nil {
		result.RetryCount = fallback.RetryCount
	}
	for name, value := range fallback.Extensions {
		if _, ok := result.Extensions[name]; ok {
			continue
		}
		if result.Extensions == nil {
			result.Extensions = make(map[string]string)
		}
		result.Extensions[name] = value
	}
	return result
}

// Clone returns a deep copy.
func (p *RoutingProperties) Clone() *RoutingProperties {
	if p == nil {
		return nil
	}
	result := *p
	if p.RetryCount != nil {
		retryCount := *p.RetryCount
		result.RetryCount = &retryCount
	}
	if len(p.Extensions) > 0 {
		result.Extensions = make(map[string]string, len(p.Extensions))
		for name, value := range p.Extensions {
			result.Extensions[name] = value
		}
	}
	return &result
}
