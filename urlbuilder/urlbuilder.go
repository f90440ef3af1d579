package urlbuilder

import (
	"fmt"
	"net/url"
	"strings"
)

// Builder resolves group/route pairs into URLs.
type Builder interface {
	Resolve(groupPath, route string, params map[string]any, query map[string]string) (string, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(groupPath, route string, params map[string]any, query map[string]string) (string, error)

// Resolve implements Builder.
func (fn BuilderFunc) Resolve(groupPath, route string, params map[string]any, query map[string]string) (string, error) {
	return fn(groupPath, route, params, query)
}

// Pattern builds URLs from ":name" path templates keyed by "group/route".
// Useful when no router-backed resolver is available.
type Pattern map[string]string

// Resolve implements Builder.
func (p Pattern) Resolve(groupPath, route string, params map[string]any, query map[string]string) (string, error) {
	tmpl, ok := p[strings.Trim(groupPath, "/")+"/"+route]
	if !ok {
		return "", fmt.Errorf("urlbuilder: unknown route %s/%s", groupPath, route)
	}
	segments := strings.Split(tmpl, "/")
	for i, segment := range segments {
		if !strings.HasPrefix(segment, ":") {
			continue
		}
		value, ok := params[segment[1:]]
		if !ok {
			return "", fmt.Errorf("urlbuilder: missing param %s for %s/%s", segment[1:], groupPath, route)
		}
		segments[i] = url.PathEscape(fmt.Sprint(value))
	}
	out := strings.Join(segments, "/")
	if len(query) > 0 {
		values := url.Values{}
		for key, value := range query {
			values.Set(key, value)
		}
		out += "?" + values.Encode()
	}
	return out, nil
}
