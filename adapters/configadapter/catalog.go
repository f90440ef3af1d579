package configadapter

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-dealflow/catalog"
)

// NewCatalog builds a label catalog from a config section keyed by kind:
//
//	stage:
//	  proposal: "Proposal sent"
//	  negotiation: {label_key: deal.stage.negotiation, order: 3}
//
// Unless disabled with WithDefaultLabels(false) the entries override the
// built-in labels.
func NewCatalog(data map[string]any, opts ...Option) *catalog.StaticCatalog {
	cfg := newOptions(opts)
	defs := []catalog.Definition{}
	if cfg.withDefaults {
		for _, kind := range []catalog.Kind{catalog.KindStage, catalog.KindStatus, catalog.KindRole} {
			defs = append(defs, catalog.Default().List(kind)...)
		}
	}
	for _, kindKey := range sortedKeys(data) {
		entries, ok := toAnyMap(data[kindKey])
		if !ok {
			continue
		}
		kind := catalog.Kind(strings.ToLower(strings.TrimSpace(kindKey)))
		for _, key := range sortedKeys(entries) {
			def, ok := definitionFromValue(entries[key])
			if !ok {
				continue
			}
			def.Kind = kind
			def.Key = key
			if def.Order == 0 && cfg.withDefaults {
				if existing, ok := catalog.Default().Get(kind, key); ok {
					def.Order = existing.Order
				}
			}
			defs = append(defs, def)
		}
	}
	return catalog.NewStatic(defs...)
}

func definitionFromValue(value any) (catalog.Definition, bool) {
	if msg, ok := messageFromValue(value); ok && !isMap(value) {
		return catalog.Definition{Label: msg}, true
	}
	data, ok := toAnyMap(value)
	if !ok {
		return catalog.Definition{}, false
	}
	def := catalog.Definition{}
	if msg, ok := messageFromValue(data["label"]); ok {
		def.Label = msg
	}
	if key, ok := data["label_key"].(string); ok {
		def.Label.Key = strings.TrimSpace(key)
	}
	if msg, ok := messageFromValue(data["description"]); ok {
		def.Description = msg
	}
	if key, ok := data["description_key"].(string); ok {
		def.Description.Key = strings.TrimSpace(key)
	}
	def.Order = orderFromValue(data["order"])
	if def.Label.Key == "" && def.Label.Text == "" {
		def.Label, _ = messageFromMap(data)
	}
	if def.Label.Key == "" && def.Label.Text == "" {
		return catalog.Definition{}, false
	}
	return def, true
}

func messageFromValue(value any) (catalog.Message, bool) {
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return catalog.Message{}, false
		}
		return catalog.Message{Text: trimmed}, true
	case map[string]any, map[string]string:
		data, _ := toAnyMap(typed)
		return messageFromMap(data)
	default:
		return catalog.Message{}, false
	}
}

func messageFromMap(data map[string]any) (catalog.Message, bool) {
	if len(data) == 0 {
		return catalog.Message{}, false
	}
	msg := catalog.Message{}
	if val, ok := data["key"].(string); ok {
		msg.Key = strings.TrimSpace(val)
	}
	if val, ok := data["text"].(string); ok {
		msg.Text = strings.TrimSpace(val)
	}
	if args, ok := toAnyMap(data["args"]); ok && len(args) > 0 {
		msg.Args = args
	}
	if msg.Key == "" && msg.Text == "" {
		return catalog.Message{}, false
	}
	return msg, true
}

func orderFromValue(value any) int {
	switch typed := value.(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		if err == nil {
			return n
		}
	}
	return 0
}

func isMap(value any) bool {
	_, ok := toAnyMap(value)
	return ok
}

func toAnyMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			out[key] = val
		}
		return out, true
	}
	return nil, false
}
