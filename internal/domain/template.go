package domain

import (
	"regexp"
)

var templatePlaceholder = regexp.MustCompile(`\{([^{}]+)\}`)

// RenderName substitutes {key} placeholders in a name template from the
// given property map. A placeholder whose key is absent renders as the
// literal key name.
func RenderName(template string, properties map[string]any) string {
	return templatePlaceholder.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		if value, ok := PropertyString(properties, key); ok {
			return value
		}
		return key
	})
}
