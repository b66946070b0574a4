package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"
	"go.uber.org/multierr"

	"github.com/shopforge/shopforge/internal/inference"
	"github.com/shopforge/shopforge/internal/schema"
)

// EntityField declares one queryable field of an entity. Type is a scalar
// name: String, Int, Float, Boolean, ID or JSON.
type EntityField struct {
	Name string
	Type string
}

// Entity declares one entity type: its queryable fields and its storage
// annotation (see schema.ParseAnnotation).
type Entity struct {
	Name       string
	Annotation string
	Fields     []EntityField
}

// FieldDecl declares one API field. Args maps argument names to scalar type
// names; a trailing "!" marks the argument non-null. What the field *does* is
// never declared: the inference engine works it out from the name and shape.
type FieldDecl struct {
	Name     string
	Mutation bool
	Entity   string
	Args     map[string]string
}

// Builder assembles an executable schema: entity annotations feed the address
// resolver, field declarations feed the inference engine, and the resulting
// resolvers are attached to the graphql type system.
type Builder struct {
	resolver *schema.Resolver
	engine   *inference.Engine
}

// NewBuilder constructs a schema builder.
func NewBuilder(resolver *schema.Resolver, engine *inference.Engine) *Builder {
	return &Builder{resolver: resolver, engine: engine}
}

// CRUDFields generates the conventional field surface for one entity:
// lookup, list, existence check, create, update and delete. idArg is the
// argument name used for identifier lookups.
func CRUDFields(entity Entity, idArg string) []FieldDecl {
	name := lowerFirst(entity.Name)
	return []FieldDecl{
		{Name: name, Entity: entity.Name, Args: map[string]string{idArg: "String!"}},
		{Name: name + "s", Entity: entity.Name, Args: listArgs(entity)},
		{Name: name + "Exists", Entity: entity.Name, Args: map[string]string{idArg: "String!"}},
		{Name: "create" + entity.Name, Mutation: true, Entity: entity.Name, Args: map[string]string{"input": "JSON"}},
		{Name: "update" + entity.Name, Mutation: true, Entity: entity.Name, Args: map[string]string{idArg: "String!", "input": "JSON"}},
		{Name: "delete" + entity.Name, Mutation: true, Entity: entity.Name, Args: map[string]string{idArg: "String!"}},
	}
}

func listArgs(entity Entity) map[string]string {
	args := map[string]string{
		"limit":  "Int",
		"offset": "Int",
		"page":   "Int",
		"size":   "Int",
		"sort":   "String",
	}
	for _, field := range entity.Fields {
		if _, taken := args[field.Name]; !taken {
			args[field.Name] = field.Type
		}
	}
	return args
}

// Build configures the address resolver from entity annotations, infers every
// declared field and assembles the executable schema. Annotation parse
// failures and uninferable fields abort the build; per-field failures are
// aggregated so one pass reports them all.
func (b *Builder) Build(entities []Entity, fields []FieldDecl) (graphql.Schema, error) {
	objects := make(map[string]*graphql.Object, len(entities))

	var errs error
	for _, entity := range entities {
		cfg, err := schema.ParseAnnotation(entity.Name, entity.Annotation)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		b.resolver.Configure(entity.Name, cfg)
		objects[entity.Name] = entityObject(entity)
	}
	if errs != nil {
		return graphql.Schema{}, errs
	}

	queryFields := graphql.Fields{}
	mutationFields := graphql.Fields{}

	for _, decl := range fields {
		field, mutation, err := b.buildField(decl, objects)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if mutation {
			mutationFields[decl.Name] = field
		} else {
			queryFields[decl.Name] = field
		}
	}
	if errs != nil {
		return graphql.Schema{}, errs
	}

	if len(queryFields) == 0 {
		return graphql.Schema{}, fmt.Errorf("graph: schema declares no query fields")
	}

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
	}
	if len(mutationFields) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutationFields})
	}

	return graphql.NewSchema(schemaConfig)
}

func (b *Builder) buildField(decl FieldDecl, objects map[string]*graphql.Object) (*graphql.Field, bool, error) {
	spec := inference.FieldSpec{
		Name:       decl.Name,
		IsMutation: decl.Mutation,
		EntityType: decl.Entity,
	}
	argNames := make([]string, 0, len(decl.Args))
	for name := range decl.Args {
		argNames = append(argNames, name)
	}
	sort.Strings(argNames)
	for _, name := range argNames {
		spec.Args = append(spec.Args, inference.ArgSpec{
			Name:     name,
			IsObject: strings.TrimSuffix(decl.Args[name], "!") == "JSON",
		})
	}

	op, resolve, err := b.engine.Register(spec)
	if err != nil {
		return nil, false, err
	}

	output, err := outputType(op, objects)
	if err != nil {
		return nil, false, err
	}

	args := graphql.FieldConfigArgument{}
	for name, typeName := range decl.Args {
		argType, err := scalarType(typeName)
		if err != nil {
			return nil, false, fmt.Errorf("graph: field %q argument %q: %w", decl.Name, name, err)
		}
		args[name] = &graphql.ArgumentConfig{Type: argType}
	}

	return &graphql.Field{
		Type:    output,
		Args:    args,
		Resolve: resolve,
	}, decl.Mutation, nil
}

func outputType(op inference.InferredOperation, objects map[string]*graphql.Object) (graphql.Output, error) {
	switch op.Kind {
	case inference.OpExists, inference.OpDelete:
		return graphql.Boolean, nil
	case inference.OpList:
		object, ok := objects[op.EntityType]
		if !ok {
			return nil, fmt.Errorf("graph: field %q: undeclared entity %q", op.FieldName, op.EntityType)
		}
		return graphql.NewList(object), nil
	default:
		object, ok := objects[op.EntityType]
		if !ok {
			return nil, fmt.Errorf("graph: field %q: undeclared entity %q", op.FieldName, op.EntityType)
		}
		return object, nil
	}
}

func entityObject(entity Entity) *graphql.Object {
	fields := graphql.Fields{}
	for _, field := range entity.Fields {
		scalar, err := scalarType(field.Type)
		if err != nil {
			scalar = graphql.String
		}
		fields[field.Name] = &graphql.Field{Type: scalar}
	}
	if len(fields) == 0 {
		fields["id"] = &graphql.Field{Type: graphql.ID}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name:   entity.Name,
		Fields: fields,
	})
}

func scalarType(name string) (graphql.Input, error) {
	required := strings.HasSuffix(name, "!")
	base := strings.TrimSuffix(name, "!")

	var t graphql.Input
	switch base {
	case "String":
		t = graphql.String
	case "Int":
		t = graphql.Int
	case "Float":
		t = graphql.Float
	case "Boolean":
		t = graphql.Boolean
	case "ID":
		t = graphql.ID
	case "JSON":
		t = JSON
	default:
		return nil, fmt.Errorf("unknown scalar type %q", name)
	}

	if required {
		return graphql.NewNonNull(t), nil
	}
	return t, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
