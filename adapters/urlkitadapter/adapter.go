package urlkitadapter

import (
	"github.com/goliatone/go-urlkit"

	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/urlbuilder"
)

// ErrResolverRequired indicates the urlkit resolver is missing.
var ErrResolverRequired = ferrors.ErrResolverRequired

// Adapter wraps a urlkit.Resolver so deal events can carry links.
type Adapter struct {
	Resolver urlkit.Resolver
}

// New builds a new Adapter for the provided resolver.
func New(resolver urlkit.Resolver) Adapter {
	return Adapter{Resolver: resolver}
}

// Resolve implements urlbuilder.Builder.
func (a Adapter) Resolve(groupPath, route string, params map[string]any, query map[string]string) (string, error) {
	meta := map[string]any{
		ferrors.MetaAdapter:   "urlkit",
		ferrors.MetaOperation: "resolve",
		"group":               groupPath,
		"route":               route,
	}
	if a.Resolver == nil {
		return "", ferrors.WrapSentinel(ferrors.ErrResolverRequired, "urlkitadapter: resolver is required", meta)
	}
	link, err := a.Resolver.Resolve(groupPath, route, params, query)
	if err != nil {
		return "", ferrors.WrapExternal(err, ferrors.TextCodeAdapterFailed, "urlkitadapter: resolve failed", meta)
	}
	return link, nil
}

var _ urlbuilder.Builder = Adapter{}
