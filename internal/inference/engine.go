package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shopforge/shopforge/internal/cache"
	"github.com/shopforge/shopforge/internal/schema"
	"github.com/shopforge/shopforge/internal/store"
	appErrors "github.com/shopforge/shopforge/pkg/errors"
	"github.com/shopforge/shopforge/pkg/logger"
)

// Engine turns declared API fields into executable store operations. All
// inference happens at schema-load time; per-request work is a table lookup
// plus the operation itself.
type Engine struct {
	schema  *schema.Resolver
	store   *store.Service
	cache   *cache.Memory
	log     *zap.Logger
	sf      singleflight.Group
	ops     map[string]InferredOperation
	timeout time.Duration
	devMode bool
}

// Options tunes engine behaviour.
type Options struct {
	StorageTimeout  time.Duration
	DevelopmentMode bool
}

// NewEngine constructs an inference engine over the given collaborators.
func NewEngine(resolver *schema.Resolver, svc *store.Service, mem *cache.Memory, opts Options) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("inference: schema resolver is required")
	}
	if svc == nil {
		return nil, appErrors.ErrServiceUnavailable.WithInternal(errors.New("inference: store service is required"))
	}
	if mem == nil {
		return nil, errors.New("inference: cache is required")
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	return &Engine{
		schema:  resolver,
		store:   svc,
		cache:   mem,
		log:     logger.WithModule("inference"),
		ops:     make(map[string]InferredOperation),
		timeout: opts.StorageTimeout,
		devMode: opts.DevelopmentMode,
	}, nil
}

// Operations returns the lookup table of inferred operations by field name.
func (e *Engine) Operations() map[string]InferredOperation {
	out := make(map[string]InferredOperation, len(e.ops))
	for name, op := range e.ops {
		out[name] = op
	}
	return out
}

// Register infers the operation for one field and returns the resolver that
// executes it. Registration fails loudly when no rule matches.
func (e *Engine) Register(spec FieldSpec) (InferredOperation, graphql.FieldResolveFn, error) {
	op, err := Infer(spec, e.schema)
	if err != nil {
		return op, nil, err
	}

	e.ops[spec.Name] = op
	e.log.Debug("inferred operation",
		zap.String("field", op.FieldName),
		zap.String("kind", op.Kind.String()),
		zap.String("entity", op.EntityType),
	)

	return op, e.resolverFor(op), nil
}

// resolverFor builds the request-time closure for one inferred operation.
// Every closure follows the same discipline: bounded storage context, cache
// consult on reads, synchronous tenant-scoped invalidation on writes, and all
// failures normalised to the error taxonomy before they cross the API
// boundary.
func (e *Engine) resolverFor(op InferredOperation) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("panic in inferred resolver",
					zap.String("field", op.FieldName),
					zap.Any("panic", r),
				)
				result = nil
				err = e.fail(appErrors.ErrInternal, fmt.Errorf("panic: %v", r))
			}
		}()

		ctx, cancel := context.WithTimeout(e.requestContext(p), e.timeout)
		defer cancel()

		switch op.Kind {
		case OpGetByID, OpGetByField:
			return e.runGet(ctx, op, p.Args)
		case OpList:
			return e.runList(ctx, op, p.Args)
		case OpExists:
			return e.runExists(ctx, op, p.Args)
		case OpCreate:
			return e.runCreate(ctx, op, p.Args)
		case OpUpdate:
			return e.runUpdate(ctx, op, p.Args)
		case OpDelete:
			return e.runDelete(ctx, op, p.Args)
		default:
			return nil, e.fail(appErrors.ErrInternal, fmt.Errorf("unknown operation kind %d", op.Kind))
		}
	}
}

func (e *Engine) requestContext(p graphql.ResolveParams) context.Context {
	if p.Context != nil {
		return p.Context
	}
	return context.Background()
}

func (e *Engine) runGet(ctx context.Context, op InferredOperation, args map[string]interface{}) (interface{}, error) {
	value, ok := args[op.IDArg]
	if !ok || value == nil {
		return nil, appErrors.ErrValidation.WithMessage(fmt.Sprintf("argument %q is required", op.IDArg))
	}

	tenant := tenantOf(args)
	key := cache.Key(cache.NamespaceSearch, tenant, map[string]interface{}{
		"op":    op.Kind.String(),
		"type":  op.EntityType,
		"field": op.LookupField,
		"value": value,
	}, e.schema.Version())

	if cached, hit := e.cache.Get(key); hit {
		return cached, nil
	}

	doc, err, _ := e.sf.Do(key, func() (interface{}, error) {
		col := e.collection(op, args)
		if op.Kind == OpGetByField {
			return col.GetByField(ctx, op.LookupField, value)
		}

		found, err := col.GetByID(ctx, fmt.Sprintf("%v", value))
		if err != nil {
			return nil, err
		}
		if found == nil && op.IDIsAlias {
			// The alias and the real identifier sometimes carry the
			// same value through different argument names; retry once
			// on the configured id field before giving up.
			return col.GetByField(ctx, e.schema.IDField(op.EntityType), value)
		}
		return found, nil
	})
	if err != nil {
		return nil, e.fail(appErrors.ErrGet, err)
	}

	document, _ := doc.(store.Document)
	if document == nil {
		return nil, nil
	}

	e.cache.Set(key, document, e.cache.TTLFor(cache.NamespaceSearch))
	return document, nil
}

func (e *Engine) runList(ctx context.Context, op InferredOperation, args map[string]interface{}) (interface{}, error) {
	tenant := tenantOf(args)
	filters := e.listFilters(op, args)
	opts, err := listOptions(args)
	if err != nil {
		return nil, appErrors.ErrValidation.WithMessage("invalid pagination arguments").WithInternal(err)
	}

	key := cache.Key(cache.NamespaceListing, tenant, listFingerprint(op, filters, opts), e.schema.Version())
	if cached, hit := e.cache.Get(key); hit {
		return cached, nil
	}

	result, err, _ := e.sf.Do(key, func() (interface{}, error) {
		docs, err := e.collection(op, args).List(ctx, filters, opts)
		if err != nil {
			return nil, err
		}

		out := make([]interface{}, len(docs))
		for i, doc := range docs {
			out[i] = doc
		}
		return out, nil
	})
	if err != nil {
		return nil, e.fail(appErrors.ErrList, err)
	}

	e.cache.Set(key, result, e.cache.TTLFor(cache.NamespaceListing))
	return result, nil
}

func (e *Engine) runExists(ctx context.Context, op InferredOperation, args map[string]interface{}) (interface{}, error) {
	value, ok := args[op.IDArg]
	if !ok || value == nil {
		return nil, appErrors.ErrValidation.WithMessage(fmt.Sprintf("argument %q is required", op.IDArg))
	}

	col := e.collection(op, args)

	var exists bool
	var err error
	if op.LookupField != "" {
		exists, err = col.ExistsByField(ctx, op.LookupField, value)
	} else {
		exists, err = col.Exists(ctx, fmt.Sprintf("%v", value))
	}
	if err != nil {
		return nil, e.fail(appErrors.ErrExists, err)
	}
	return exists, nil
}

func (e *Engine) runCreate(ctx context.Context, op InferredOperation, args map[string]interface{}) (interface{}, error) {
	body, err := e.bodyOf(op, args)
	if err != nil {
		return nil, err
	}

	id := ""
	if op.IDArg != "" {
		if v, ok := args[op.IDArg]; ok && v != nil {
			id = fmt.Sprintf("%v", v)
		}
	}

	doc, err := e.collection(op, args).Create(ctx, body, id)
	if err != nil {
		return nil, e.fail(appErrors.ErrCreate, err)
	}

	e.invalidate(tenantOf(args))
	return doc, nil
}

func (e *Engine) runUpdate(ctx context.Context, op InferredOperation, args map[string]interface{}) (interface{}, error) {
	value, ok := args[op.IDArg]
	if !ok || value == nil {
		return nil, appErrors.ErrValidation.WithMessage(fmt.Sprintf("argument %q is required", op.IDArg))
	}

	patch, err := e.bodyOf(op, args)
	if err != nil {
		return nil, err
	}

	doc, err := e.collection(op, args).Update(ctx, fmt.Sprintf("%v", value), patch)
	if err != nil {
		return nil, e.fail(appErrors.ErrUpdate, err)
	}

	e.invalidate(tenantOf(args))
	if doc == nil {
		return nil, nil
	}
	return doc, nil
}

func (e *Engine) runDelete(ctx context.Context, op InferredOperation, args map[string]interface{}) (interface{}, error) {
	value, ok := args[op.IDArg]
	if !ok || value == nil {
		return nil, appErrors.ErrValidation.WithMessage(fmt.Sprintf("argument %q is required", op.IDArg))
	}

	deleted, err := e.collection(op, args).Delete(ctx, fmt.Sprintf("%v", value))
	if err != nil {
		return nil, e.fail(appErrors.ErrDelete, err)
	}

	e.invalidate(tenantOf(args))
	return deleted, nil
}

func (e *Engine) collection(op InferredOperation, args map[string]interface{}) *store.Collection {
	address := e.schema.ResolveAddress(op.EntityType, args)
	return e.store.Collection(op.EntityType, address)
}

// bodyOf extracts the document body: the declared input argument when one
// exists, otherwise the whole argument bag minus the identifier and any
// address placeholders (those route the request, they are not entity data).
func (e *Engine) bodyOf(op InferredOperation, args map[string]interface{}) (store.Document, error) {
	if op.BodyArg != "" {
		raw, ok := args[op.BodyArg].(map[string]interface{})
		if !ok {
			return nil, appErrors.ErrValidation.WithMessage(fmt.Sprintf("argument %q must be an object", op.BodyArg))
		}
		return raw, nil
	}

	skip := map[string]bool{op.IDArg: true}
	if cfg, ok := e.schema.Lookup(op.EntityType); ok {
		for _, placeholder := range cfg.Placeholders {
			skip[placeholder] = true
		}
	}

	body := make(store.Document, len(args))
	for name, value := range args {
		if skip[name] {
			continue
		}
		body[name] = value
	}
	return body, nil
}

// listFilters keeps every argument that is neither pagination nor an address
// placeholder; each one becomes an equality filter.
func (e *Engine) listFilters(op InferredOperation, args map[string]interface{}) map[string]interface{} {
	skip := make(map[string]bool, len(paginationArgs)+2)
	for name := range paginationArgs {
		skip[name] = true
	}
	if cfg, ok := e.schema.Lookup(op.EntityType); ok {
		for _, placeholder := range cfg.Placeholders {
			skip[placeholder] = true
		}
	}

	filters := make(map[string]interface{})
	for name, value := range args {
		if skip[name] || value == nil {
			continue
		}
		filters[name] = value
	}
	return filters
}

func listFingerprint(op InferredOperation, filters map[string]interface{}, opts store.ListOptions) map[string]interface{} {
	parts := make(map[string]interface{}, len(filters)+4)
	for name, value := range filters {
		parts["f."+name] = value
	}
	parts["type"] = op.EntityType
	parts["limit"] = opts.Limit
	parts["offset"] = opts.Offset
	parts["sort"] = opts.Sort
	return parts
}

// listOptions decodes pagination arguments, aliasing page to offset and size
// to limit.
func listOptions(args map[string]interface{}) (store.ListOptions, error) {
	var raw struct {
		Limit  int    `mapstructure:"limit"`
		Offset int    `mapstructure:"offset"`
		Page   int    `mapstructure:"page"`
		Size   int    `mapstructure:"size"`
		Sort   string `mapstructure:"sort"`
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return store.ListOptions{}, err
	}
	if err := decoder.Decode(args); err != nil {
		return store.ListOptions{}, err
	}

	opts := store.ListOptions{Limit: raw.Limit, Offset: raw.Offset, Sort: raw.Sort}
	if opts.Limit == 0 && raw.Size > 0 {
		opts.Limit = raw.Size
	}
	if opts.Offset == 0 && raw.Page > 0 {
		opts.Offset = raw.Page
	}
	return opts, nil
}

// invalidate drops every cached read for a tenant across all namespaces. It
// runs synchronously before the write's response is returned, so a read
// issued after the response cannot see pre-write cached data.
func (e *Engine) invalidate(tenant string) {
	for _, namespace := range []string{cache.NamespaceSearch, cache.NamespaceListing, cache.NamespaceAggregation} {
		e.cache.DeletePattern(cache.TenantPrefix(namespace, tenant) + "*")
	}
}

func tenantOf(args map[string]interface{}) string {
	if v, ok := args["tenant"]; ok && v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "default"
}

// fail normalises a storage failure into the error taxonomy, keeping the raw
// cause in logs and, in development mode, in the error details.
func (e *Engine) fail(base *appErrors.AppError, cause error) error {
	if cause == nil {
		return base
	}

	var appErr *appErrors.AppError
	if errors.As(cause, &appErr) {
		return appErr
	}

	out := base.WithInternal(cause)
	if errors.Is(cause, context.DeadlineExceeded) {
		out = out.WithMessage("Storage call timed out")
	}
	if e.devMode {
		out = out.WithDetail("internal", cause.Error())
	}

	e.log.Error("operation failed",
		zap.String("code", out.Code),
		zap.Error(cause),
	)
	return out
}
