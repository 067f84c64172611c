package query

// ---------------- Operadores ----------------

// Operator es el catálogo cerrado de operadores de filtrado.
// Al ser un enum etiquetado, un operador desconocido no puede
// colarse silenciosamente: ParseOperator devuelve false.
type Operator int

const (
	OpEq Operator = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpContains  // substring, sensible a mayúsculas
	OpIContains // substring, insensible a mayúsculas
	OpIn        // pertenencia a lista (entrada separada por comas)
)

var operatorNames = map[string]Operator{
	"eq":        OpEq,
	"neq":       OpNeq,
	"gt":        OpGt,
	"gte":       OpGte,
	"lt":        OpLt,
	"lte":       OpLte,
	"contains":  OpContains,
	"icontains": OpIContains,
	"in":        OpIn,
}

// ParseOperator traduce el nombre externo de un operador al enum.
func ParseOperator(name string) (Operator, bool) {
	op, ok := operatorNames[name]
	return op, ok
}

func (op Operator) String() string {
	switch op {
	case OpEq:
		return "eq"
	case OpNeq:
		return "neq"
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	case OpLt:
		return "lt"
	case OpLte:
		return "lte"
	case OpContains:
		return "contains"
	case OpIContains:
		return "icontains"
	case OpIn:
		return "in"
	}
	return "unknown"
}

// AppliesTo indica si el operador es válido para un kind de valor.
// contains/icontains requieren texto; los de orden requieren un kind
// ordenable; in acepta cualquier kind escalar.
func (op Operator) AppliesTo(k Kind) bool {
	switch op {
	case OpEq, OpNeq, OpIn:
		return true
	case OpGt, OpGte, OpLt, OpLte:
		return k == KindNumber || k == KindTime
	case OpContains, OpIContains:
		return k == KindText
	}
	return false
}
