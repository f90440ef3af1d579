package authz

import "strings"

// ResourceType names an owned resource kind.
type ResourceType string

const (
	ResourceDeal    ResourceType = "deal"
	ResourceContact ResourceType = "contact"
	ResourceTask    ResourceType = "task"
	ResourceComment ResourceType = "comment"
)

var resourceAliases = map[string]ResourceType{
	"deals":    ResourceDeal,
	"contacts": ResourceContact,
	"tasks":    ResourceTask,
	"comments": ResourceComment,
	"activity": ResourceComment,
}

// NormalizeResourceType lowercases, trims and resolves plural aliases.
func NormalizeResourceType(value string) ResourceType {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return ""
	}
	if alias, ok := resourceAliases[key]; ok {
		return alias
	}
	return ResourceType(key)
}

// Label returns the display form used in denial messages.
func (t ResourceType) Label() string {
	if t == "" {
		return "resource"
	}
	return string(t)
}

func (t ResourceType) String() string {
	return string(t)
}
