package query

import (
	"strconv"
	"strings"
	"time"
)

// ---------------- Filtros crudos ----------------

// Filters es la entrada no confiable del cliente:
// nombre de campo -> nombre de operador -> valor en texto.
type Filters map[string]map[string]string

// ---------------- Predicate ----------------

// Condition es una condición neutral ya validada y tipada.
// Para OpIn, Value es un []any con los elementos ya coercionados.
type Condition struct {
	Field Field
	Op    Operator
	Value any
}

// Predicate es la conjunción (AND implícito) de condiciones.
// Un Predicate vacío equivale a "sin filtro".
type Predicate struct {
	Conditions []Condition
}

// IsEmpty indica si el predicado no filtra nada.
func (p Predicate) IsEmpty() bool { return len(p.Conditions) == 0 }

// ---------------- PredicateBuilder ----------------

// BuildPredicate valida y compila los filtros crudos contra el registro.
//
// Política para campos desconocidos o no filtrables: la cláusula se
// descarta en silencio, de forma que filtrar por un campo denegado es
// indistinguible de no filtrar. Es una decisión deliberada (UX permisiva);
// un operador desconocido o un valor no coercionable sobre un campo
// registrado sí falla con ValidationError.
func BuildPredicate(reg *Registry, filters Filters) (Predicate, error) {
	var pred Predicate
	for fieldName, ops := range filters {
		field, ok := reg.Resolve(fieldName)
		if !ok || !field.Filterable {
			continue // campo fuera del allow-list: se ignora
		}
		for opName, raw := range ops {
			op, ok := ParseOperator(opName)
			if !ok {
				return Predicate{}, &ValidationError{Field: fieldName, Op: opName, Reason: "unknown operator"}
			}
			if !op.AppliesTo(field.Kind) {
				return Predicate{}, &ValidationError{
					Field: fieldName, Op: opName,
					Reason: "operator not supported for " + field.Kind.String() + " fields",
				}
			}
			value, err := coerce(field, op, raw)
			if err != nil {
				return Predicate{}, err
			}
			pred.Conditions = append(pred.Conditions, Condition{Field: field, Op: op, Value: value})
		}
	}
	return pred, nil
}

// ---------------- Coerción de valores ----------------

// coerce convierte el valor textual al tipo declarado del campo.
// OpIn divide la entrada por comas y coerciona cada elemento.
func coerce(field Field, op Operator, raw string) (any, error) {
	if op == OpIn {
		parts := strings.Split(raw, ",")
		values := make([]any, 0, len(parts))
		for _, part := range parts {
			v, err := coerceScalar(field, strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	}
	return coerceScalar(field, raw)
}

func coerceScalar(field Field, raw string) (any, error) {
	switch field.Kind {
	case KindText:
		return raw, nil
	case KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ValidationError{Field: field.Name, Reason: "value " + strconv.Quote(raw) + " is not a number"}
		}
		return n, nil
	case KindTime:
		// RFC3339 primero, fecha simple como alternativa
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, &ValidationError{Field: field.Name, Reason: "value " + strconv.Quote(raw) + " is not a timestamp"}
		}
		return t, nil
	}
	return nil, &ValidationError{Field: field.Name, Reason: "unsupported field kind"}
}
