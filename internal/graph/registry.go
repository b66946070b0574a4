package graph

// DefaultEntities is the commerce schema served out of the box. Deployments
// override it by building the schema from their own entity declarations.
func DefaultEntities() []Entity {
	return []Entity{
		{
			Name:       "Product",
			Annotation: "@index products idField=sku sensitiveFields=cost,supplierId",
			Fields: []EntityField{
				{Name: "sku", Type: "String"},
				{Name: "handle", Type: "String"},
				{Name: "name", Type: "String"},
				{Name: "description", Type: "String"},
				{Name: "price", Type: "Float"},
				{Name: "currency", Type: "String"},
				{Name: "inStock", Type: "Boolean"},
			},
		},
		{
			Name:       "Category",
			Annotation: "@index categories",
			Fields: []EntityField{
				{Name: "id", Type: "ID"},
				{Name: "name", Type: "String"},
				{Name: "parentId", Type: "String"},
			},
		},
		{
			Name:       "Order",
			Annotation: "@index orders-{tenant} sensitiveFields=customerEmail",
			Fields: []EntityField{
				{Name: "id", Type: "ID"},
				{Name: "status", Type: "String"},
				{Name: "total", Type: "Float"},
				{Name: "currency", Type: "String"},
			},
		},
	}
}

// DefaultFields declares the API surface over DefaultEntities. Orders live at
// per-tenant addresses, so every order field carries a tenant argument; the
// address resolver substitutes it and the engine keeps it out of filters and
// document bodies.
func DefaultFields() []FieldDecl {
	product := DefaultEntities()[0]
	category := DefaultEntities()[1]

	fields := CRUDFields(product, "sku")
	fields = append(fields,
		FieldDecl{Name: "productByHandle", Entity: "Product", Args: map[string]string{"handle": "String!"}},
	)
	fields = append(fields, CRUDFields(category, "id")...)

	fields = append(fields,
		FieldDecl{Name: "orders", Entity: "Order", Args: map[string]string{
			"tenant": "String!",
			"status": "String",
			"limit":  "Int",
			"offset": "Int",
			"page":   "Int",
			"size":   "Int",
			"sort":   "String",
		}},
		FieldDecl{Name: "createOrder", Mutation: true, Entity: "Order", Args: map[string]string{
			"tenant": "String!",
			"input":  "JSON",
		}},
		FieldDecl{Name: "updateOrder", Mutation: true, Entity: "Order", Args: map[string]string{
			"id":     "String!",
			"tenant": "String!",
			"input":  "JSON",
		}},
		FieldDecl{Name: "deleteOrder", Mutation: true, Entity: "Order", Args: map[string]string{
			"id":     "String!",
			"tenant": "String!",
		}},
	)

	return fields
}
