package definition

import (
	"strconv"
	"strings"

	"github.com/taskgrid/taskgrid/definition/docmeta"
	"github.com/taskgrid/taskgrid/model"
)

// applyProperty assigns a named property value, routing known keys to the
// typed fields and everything else to Extensions. Known keys match
// case-insensitively; malformed numeric values stay in Extensions so
// diagnostics keep the raw text.
func applyProperty(properties *model.RoutingProperties, name, value string) {
	switch {
	case strings.EqualFold(name, model.PropertyServiceType):
		properties.ServiceType = value
	case strings.EqualFold(name, model.PropertyServiceName):
		properties.ServiceName = value
	case strings.EqualFold(name, model.PropertyVersion):
		properties.Version = value
	case strings.EqualFold(name, model.PropertyTimeoutMs):
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			properties.TimeoutMs = parsed
			return
		}
		setExtension(properties, name, value)
	case strings.EqualFold(name, model.PropertyRetryCount):
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			properties.RetryCount = &parsed
			return
		}
		setExtension(properties, name, value)
	default:
		setExtension(properties, name, value)
	}
}

func setExtension(properties *model.RoutingProperties, name, value string) {
	if properties.Extensions == nil {
		properties.Extensions = make(map[string]string)
	}
	properties.Extensions[name] = value
}

// effectiveProperties merges structured extension properties over
// documentation metadata: structured keys win, documentation supplies the
// missing ones.
func effectiveProperties(structured *model.RoutingProperties, documentation string) *model.RoutingProperties {
	pairs := docmeta.Parse(documentation)
	if len(pairs) == 0 {
		return structured
	}
	fallback := &model.RoutingProperties{}
	for _, pair := range pairs {
		applyProperty(fallback, pair.Key, pair.Value)
	}
	return structured.Merged(fallback)
}
