package optionsadapter

import (
	"strings"

	"github.com/goliatone/go-dealflow/ferrors"
)

// splitPath breaks a dotted policy key such as "strategies.deal" into its
// non-empty segments.
func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '.' || r == ' ' || r == '\t'
	})
}

func setPath(settings map[string]any, path string, value any) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return ferrors.WrapSentinel(ferrors.ErrPathRequired, "optionsadapter: path is empty", map[string]any{
			ferrors.MetaPath: path,
		})
	}
	if conflict, ok := assign(settings, segments, value); !ok {
		return ferrors.WrapSentinel(ferrors.ErrPathInvalid, "optionsadapter: path segment is not a map", map[string]any{
			ferrors.MetaPath: path,
			"segment":        conflict,
		})
	}
	return nil
}

// assign writes value under segments, creating intermediate maps. It
// reports the segment holding a non-map value when it cannot descend.
func assign(node map[string]any, segments []string, value any) (string, bool) {
	head := segments[0]
	if len(segments) == 1 {
		node[head] = value
		return "", true
	}
	child, exists := node[head]
	if !exists {
		child = map[string]any{}
		node[head] = child
	}
	nested, ok := child.(map[string]any)
	if !ok {
		return head, false
	}
	return assign(nested, segments[1:], value)
}

// deletePath removes path and prunes parents left empty. It reports
// whether anything was removed.
func deletePath(settings map[string]any, path string) bool {
	segments := splitPath(path)
	if len(segments) == 0 {
		return false
	}
	return prune(settings, segments)
}

func prune(node map[string]any, segments []string) bool {
	head := segments[0]
	if len(segments) == 1 {
		if _, ok := node[head]; !ok {
			return false
		}
		delete(node, head)
		return true
	}
	nested, ok := node[head].(map[string]any)
	if !ok || !prune(nested, segments[1:]) {
		return false
	}
	if len(nested) == 0 {
		delete(node, head)
	}
	return true
}

// flattenMap turns nested maps into dotted keys. Lists, scalars and empty
// maps are leaves.
func flattenMap(prefix string, data map[string]any, out map[string]any) {
	for key, value := range data {
		if key == "" {
			continue
		}
		path := strings.TrimPrefix(prefix+"."+key, ".")
		child, ok := value.(map[string]any)
		if !ok || len(child) == 0 {
			out[path] = value
			continue
		}
		flattenMap(path, child, out)
	}
}
