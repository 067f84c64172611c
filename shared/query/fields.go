package query

import "fmt"

// ---------------- Kinds de valor ----------------

// Kind clasifica el tipo de valor de un campo consultable.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	}
	return "unknown"
}

// ---------------- FieldDescriptor ----------------

// Field describe un campo expuesto al exterior: nombre externo,
// columna/atributo del backend y capacidades permitidas.
type Field struct {
	Name       string // nombre visible para el cliente
	Column     string // columna o atributo nativo del backend
	Kind       Kind
	Filterable bool
	Sortable   bool
}

// ---------------- Registry ----------------

// Registry es el allow-list inmutable de campos de una entidad.
// Todo campo no registrado está denegado: Resolve devuelve false y
// el resto de la capa lo trata como inexistente.
type Registry struct {
	entity  string
	primary Field
	fields  map[string]Field
}

// NewRegistry construye el registro de una entidad. El campo primario
// debe estar entre los declarados y los nombres externos ser únicos.
// Se construye una vez en el arranque; después es de solo lectura.
func NewRegistry(entity, primaryName string, fields ...Field) (*Registry, error) {
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		if f.Name == "" || f.Column == "" {
			return nil, fmt.Errorf("registry %q: field with empty name or column", entity)
		}
		if _, dup := byName[f.Name]; dup {
			return nil, fmt.Errorf("registry %q: duplicate field %q", entity, f.Name)
		}
		byName[f.Name] = f
	}

	primary, ok := byName[primaryName]
	if !ok {
		return nil, fmt.Errorf("registry %q: primary field %q not declared", entity, primaryName)
	}

	return &Registry{entity: entity, primary: primary, fields: byName}, nil
}

// Resolve busca un campo por su nombre externo. Deny-by-default:
// cualquier nombre desconocido devuelve false, nunca una aproximación.
func (r *Registry) Resolve(name string) (Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Entity devuelve el nombre de la entidad.
func (r *Registry) Entity() string { return r.entity }

// Primary devuelve el campo primario (orden estable por defecto).
func (r *Registry) Primary() Field { return r.primary }

// Names devuelve los nombres externos registrados (para tests de completitud).
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fields))
	for n := range r.fields {
		names = append(names, n)
	}
	return names
}
