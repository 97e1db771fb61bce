package dag

import (
	"github.com/kbukum/mediaflow/content"
	"github.com/kbukum/mediaflow/descriptor"
	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/resolver"
)

// DefaultSchema is used by pipelines that do not name one.
const DefaultSchema = "default"

// StoreProvider hands out descriptor stores by schema.
type StoreProvider interface {
	Store(schema string) (descriptor.Store, error)
}

// Services are the shared resources a Builder passes to factories through
// the pipeline Context.
type Services struct {
	// Cache backs CachedContentFactory. Nil disables it.
	Cache *content.Cache
	// Resolvers by name. A pipeline without a resolver name gets the one
	// registered as resolver.Name, if any.
	Resolvers map[string]resolver.Resolver
	Stores    StoreProvider
}

// Context is the pipeline-wide state handed to every factory.
type Context struct {
	Pipeline string
	Schema   string
	Content  content.Factory
	// Resolver is nil when the pipeline has none.
	Resolver resolver.Resolver
	Stores   StoreProvider
	Params   Parameters
	Logger   *logger.Logger
}

// Store returns the descriptor store of the pipeline's schema.
func (c *Context) Store() (descriptor.Store, error) {
	if c.Stores == nil {
		return nil, configError(ErrInvalidPipeline, "pipeline %q has no descriptor storage", c.Pipeline)
	}
	return c.Stores.Store(c.Schema)
}

func newContext(cfg *PipelineConfig, svc Services) (*Context, error) {
	schema := cfg.Schema
	if schema == "" {
		schema = DefaultSchema
	}
	factory, err := content.NewFactory(cfg.Context.ContentFactory, svc.Cache)
	if err != nil {
		return nil, configError(ErrInvalidParameter, "pipeline %q: %v", cfg.Name, err).
			WithDetail("contentFactory", cfg.Context.ContentFactory)
	}

	var res resolver.Resolver
	if name := cfg.Context.ResolverName; name != "" {
		r, ok := svc.Resolvers[name]
		if !ok {
			return nil, configError(ErrInvalidParameter, "pipeline %q: unknown resolver %q", cfg.Name, name).
				WithDetail("resolverName", name)
		}
		res = r
	} else {
		res = svc.Resolvers[resolver.Name]
	}

	return &Context{
		Pipeline: cfg.Name,
		Schema:   schema,
		Content:  factory,
		Resolver: res,
		Stores:   svc.Stores,
		Params:   cfg.Context.Parameters,
		Logger: logger.Get("dag").WithFields(logger.Fields(
			logger.FieldPipeline, cfg.Name,
			logger.FieldSchema, schema,
		)),
	}, nil
}
