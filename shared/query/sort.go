package query

// ---------------- Ordenamiento ----------------

// Order es la cláusula de orden ya resuelta contra el registro.
type Order struct {
	Field Field
	Desc  bool
}

// BuildOrder valida el campo de orden pedido. Si falta, es desconocido
// o no es ordenable, cae al campo primario ascendente: una paginación
// sin orden estable no es reproducible entre páginas, así que el orden
// nunca se descarta en silencio.
func BuildOrder(reg *Registry, sortBy, sortOrder string) Order {
	desc := sortOrder == "desc"

	if sortBy == "" {
		return Order{Field: reg.Primary(), Desc: desc}
	}
	field, ok := reg.Resolve(sortBy)
	if !ok || !field.Sortable {
		return Order{Field: reg.Primary()}
	}
	return Order{Field: field, Desc: desc}
}
