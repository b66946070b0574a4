package inference

import (
	"fmt"
	"strings"

	"github.com/shopforge/shopforge/internal/schema"
)

// OperationKind is the store operation a declared API field maps onto. The
// kind is decided once at schema-load time so dispatch is a table lookup, not
// per-request string inspection.
type OperationKind int

const (
	OpUnknown OperationKind = iota
	OpGetByID
	OpGetByField
	OpList
	OpExists
	OpCreate
	OpUpdate
	OpDelete
)

func (k OperationKind) String() string {
	switch k {
	case OpGetByID:
		return "getById"
	case OpGetByField:
		return "getByField"
	case OpList:
		return "list"
	case OpExists:
		return "exists"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ArgSpec describes one declared argument of an API field.
type ArgSpec struct {
	Name     string
	IsObject bool
}

// FieldSpec is the declarative shape of an API field the engine infers from.
type FieldSpec struct {
	Name       string
	IsMutation bool
	EntityType string
	Args       []ArgSpec
}

// InferredOperation is the resolved meaning of one field: which operation to
// run, against which entity type, and which arguments carry the identifier
// and body.
type InferredOperation struct {
	FieldName   string
	Kind        OperationKind
	EntityType  string
	IDArg       string
	BodyArg     string
	LookupField string
	IDIsAlias   bool
}

// paginationArgs never become equality filters on list fields.
var paginationArgs = map[string]bool{
	"limit":  true,
	"offset": true,
	"page":   true,
	"size":   true,
	"sort":   true,
}

// Infer decides which store operation a field represents, applying the
// ordered rules below; the first match wins. A field matching none of them is
// a setup error: the engine fails closed instead of installing a no-op.
func Infer(spec FieldSpec, resolver *schema.Resolver) (InferredOperation, error) {
	op := InferredOperation{
		FieldName:  spec.Name,
		EntityType: spec.EntityType,
	}

	switch {
	case spec.IsMutation && strings.HasPrefix(spec.Name, "create"):
		op.Kind = OpCreate
		op.BodyArg = bodyArgOf(spec)
		if hasArg(spec, "id") {
			op.IDArg = "id"
		}

	case spec.IsMutation && strings.HasPrefix(spec.Name, "update"):
		op.Kind = OpUpdate
		op.IDArg = idArgOf(spec)
		op.BodyArg = bodyArgOf(spec)

	case spec.IsMutation && (strings.HasPrefix(spec.Name, "delete") || strings.HasPrefix(spec.Name, "remove")):
		op.Kind = OpDelete
		op.IDArg = idArgOf(spec)
		// Delete fields conventionally return Boolean, so the declared
		// return type cannot name the entity; re-derive it from the
		// field name instead.
		derived := entityFromName(spec.Name, "delete", "remove")
		if derived == "" {
			return op, fmt.Errorf("inference: field %q: cannot derive entity type from delete field name", spec.Name)
		}
		op.EntityType = derived

	case !spec.IsMutation && strings.HasSuffix(spec.Name, "Exists"):
		op.Kind = OpExists
		if op.EntityType == "" {
			op.EntityType = capitalize(strings.TrimSuffix(spec.Name, "Exists"))
		}
		if len(spec.Args) != 1 {
			return op, fmt.Errorf("inference: field %q: existence checks take exactly one argument", spec.Name)
		}
		arg := spec.Args[0].Name
		if !isIDArgument(arg, op.EntityType, resolver) {
			op.LookupField = arg
		}
		op.IDArg = arg

	case !spec.IsMutation && len(spec.Name) > 1 && strings.HasSuffix(spec.Name, "s"):
		op.Kind = OpList

	case !spec.IsMutation && len(spec.Args) == 1:
		arg := spec.Args[0].Name
		op.IDArg = arg
		switch {
		case isIDArgument(arg, op.EntityType, resolver):
			op.Kind = OpGetByID
		case isIDAlias(arg, op.EntityType, resolver):
			op.Kind = OpGetByID
			op.IDIsAlias = true
		default:
			op.Kind = OpGetByField
			op.LookupField = arg
		}

	default:
		return op, fmt.Errorf("inference: cannot infer operation for field %q", spec.Name)
	}

	if op.EntityType == "" {
		return op, fmt.Errorf("inference: field %q: entity type is required", spec.Name)
	}

	return op, nil
}

func hasArg(spec FieldSpec, name string) bool {
	for _, arg := range spec.Args {
		if arg.Name == name {
			return true
		}
	}
	return false
}

// bodyArgOf picks the argument carrying the document body: an argument named
// "input" when declared, otherwise the whole argument bag (empty string).
func bodyArgOf(spec FieldSpec) string {
	if hasArg(spec, "input") {
		return "input"
	}
	return ""
}

// idArgOf picks the identifier argument: the one named "id" when declared,
// otherwise the first scalar argument. Object arguments carry the body and
// never the identifier.
func idArgOf(spec FieldSpec) string {
	if hasArg(spec, "id") {
		return "id"
	}
	for _, arg := range spec.Args {
		if !arg.IsObject {
			return arg.Name
		}
	}
	return "id"
}

func isIDArgument(arg, entityType string, resolver *schema.Resolver) bool {
	if arg == "id" || arg == "_id" {
		return true
	}
	return resolver != nil && arg == resolver.IDField(entityType)
}

func isIDAlias(arg, entityType string, resolver *schema.Resolver) bool {
	if resolver == nil {
		return false
	}
	for _, alias := range resolver.IDAliases(entityType) {
		if arg == alias {
			return true
		}
	}
	return false
}

// entityFromName strips a verb prefix off a field name: deleteWidget -> Widget.
func entityFromName(name string, prefixes ...string) string {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return capitalize(strings.TrimPrefix(name, prefix))
		}
	}
	return capitalize(name)
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
