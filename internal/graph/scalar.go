package graph

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// JSON is a free-form object scalar used for document bodies and patches.
// Mutations accept arbitrary entity data, so their input cannot be a closed
// input object type.
var JSON = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize: func(value interface{}) interface{} {
		return value
	},
	ParseValue: func(value interface{}) interface{} {
		return value
	},
	ParseLiteral: parseLiteral,
})

func parseLiteral(valueAST ast.Value) interface{} {
	switch value := valueAST.(type) {
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(value.Fields))
		for _, field := range value.Fields {
			out[field.Name.Value] = parseLiteral(field.Value)
		}
		return out
	case *ast.ListValue:
		out := make([]interface{}, 0, len(value.Values))
		for _, item := range value.Values {
			out = append(out, parseLiteral(item))
		}
		return out
	case *ast.StringValue:
		return value.Value
	case *ast.BooleanValue:
		return value.Value
	case *ast.IntValue:
		return value.Value
	case *ast.FloatValue:
		return value.Value
	case *ast.EnumValue:
		return value.Value
	default:
		return nil
	}
}
