package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
)

// Message represents a human-friendly string with optional localization data.
type Message struct {
	Key  string
	Text string
	Args map[string]any
}

// Kind groups definitions.
type Kind string

const (
	KindStage  Kind = "stage"
	KindStatus Kind = "status"
	KindRole   Kind = "role"
)

// Definition describes a stage, status or role for UI and documentation.
type Definition struct {
	Kind        Kind
	Key         string
	Label       Message
	Description Message
	Order       int
}

// Catalog exposes definitions by kind and key.
type Catalog interface {
	Get(kind Kind, key string) (Definition, bool)
	List(kind Kind) []Definition
}

// MessageResolver resolves a Message to a display string.
type MessageResolver interface {
	Resolve(ctx context.Context, locale string, msg Message) (string, error)
}

// PlainResolver returns the Message text or key without localization.
type PlainResolver struct{}

// Resolve implements MessageResolver.
func (PlainResolver) Resolve(_ context.Context, _ string, msg Message) (string, error) {
	if msg.Text != "" {
		return msg.Text, nil
	}
	return msg.Key, nil
}

// StaticCatalog provides an in-memory catalog.
type StaticCatalog struct {
	defs map[Kind]map[string]Definition
}

// NewStatic builds an in-memory catalog. Definitions without a kind or key
// are skipped; later duplicates win.
func NewStatic(defs ...Definition) *StaticCatalog {
	out := map[Kind]map[string]Definition{}
	for _, def := range defs {
		kind := Kind(normalizeKey(string(def.Kind)))
		key := normalizeKey(def.Key)
		if kind == "" || key == "" {
			continue
		}
		def.Kind = kind
		def.Key = key
		def.Label = normalizeMessage(def.Label)
		def.Description = normalizeMessage(def.Description)
		if out[kind] == nil {
			out[kind] = map[string]Definition{}
		}
		out[kind][key] = def
	}
	return &StaticCatalog{defs: out}
}

// Default returns labels for the built-in stages, statuses and roles.
func Default() *StaticCatalog {
	defs := []Definition{}
	stageLabels := map[deal.Stage]string{
		deal.StageQualification: "Qualification",
		deal.StageProposal:      "Proposal",
		deal.StageNegotiation:   "Negotiation",
		deal.StageClosed:        "Closed",
	}
	for i, stage := range deal.Stages() {
		defs = append(defs, Definition{
			Kind:  KindStage,
			Key:   string(stage),
			Label: Message{Key: "deal.stage." + string(stage), Text: stageLabels[stage]},
			Order: i + 1,
		})
	}
	statusLabels := map[deal.Status]string{
		deal.StatusNew:        "New",
		deal.StatusInProgress: "In progress",
		deal.StatusWon:        "Won",
		deal.StatusLost:       "Lost",
	}
	for i, status := range deal.Statuses() {
		defs = append(defs, Definition{
			Kind:  KindStatus,
			Key:   string(status),
			Label: Message{Key: "deal.status." + string(status), Text: statusLabels[status]},
			Order: i + 1,
		})
	}
	for _, role := range authz.Roles() {
		defs = append(defs, Definition{
			Kind:  KindRole,
			Key:   string(role),
			Label: Message{Key: "role." + string(role), Text: strings.ToUpper(string(role[:1])) + string(role[1:])},
			Order: role.Level(),
		})
	}
	return NewStatic(defs...)
}

// Get implements Catalog.
func (c *StaticCatalog) Get(kind Kind, key string) (Definition, bool) {
	if c == nil || len(c.defs) == 0 {
		return Definition{}, false
	}
	def, ok := c.defs[Kind(normalizeKey(string(kind)))][normalizeKey(key)]
	return def, ok
}

// List implements Catalog, sorted by Order then key.
func (c *StaticCatalog) List(kind Kind) []Definition {
	if c == nil {
		return nil
	}
	group := c.defs[Kind(normalizeKey(string(kind)))]
	if len(group) == 0 {
		return nil
	}
	out := make([]Definition, 0, len(group))
	for _, def := range group {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Label resolves the display label for key, falling back to the key.
func Label(ctx context.Context, cat Catalog, resolver MessageResolver, locale string, kind Kind, key string) string {
	if cat == nil {
		return key
	}
	def, ok := cat.Get(kind, key)
	if !ok {
		return key
	}
	if resolver == nil {
		resolver = PlainResolver{}
	}
	text, err := resolver.Resolve(ctx, locale, def.Label)
	if err != nil || text == "" {
		return key
	}
	return text
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func normalizeMessage(msg Message) Message {
	msg.Key = strings.TrimSpace(msg.Key)
	msg.Text = strings.TrimSpace(msg.Text)
	if len(msg.Args) == 0 {
		msg.Args = nil
	}
	return msg
}
