package domain

import (
	sharedQuery "github.com/davicafu/flowlab/shared/query"
)

// ---------------- Allow-list de campos ----------------

// NewFieldRegistry declara explícitamente los campos de Execution que
// pueden filtrarse y ordenarse desde el exterior. secret_token no
// aparece a propósito: para el cliente es indistinguible de un campo
// inexistente. El test de completitud de este paquete asegura que la
// lista cubre todos los campos exportados salvo los denegados.
func NewFieldRegistry() *sharedQuery.Registry {
	reg, err := sharedQuery.NewRegistry("execution", "id",
		sharedQuery.Field{Name: "id", Column: "id", Kind: sharedQuery.KindText, Filterable: true, Sortable: true},
		sharedQuery.Field{Name: "workflow", Column: "workflow", Kind: sharedQuery.KindText, Filterable: true, Sortable: true},
		sharedQuery.Field{Name: "name", Column: "name", Kind: sharedQuery.KindText, Filterable: true, Sortable: true},
		sharedQuery.Field{Name: "status", Column: "status", Kind: sharedQuery.KindText, Filterable: true, Sortable: true},
		sharedQuery.Field{Name: "owner", Column: "owner", Kind: sharedQuery.KindText, Filterable: true, Sortable: true},
		sharedQuery.Field{Name: "task_queue", Column: "task_queue", Kind: sharedQuery.KindText, Filterable: true, Sortable: false},
		sharedQuery.Field{Name: "attempts", Column: "attempts", Kind: sharedQuery.KindNumber, Filterable: true, Sortable: true},
		sharedQuery.Field{Name: "created_at", Column: "created_at", Kind: sharedQuery.KindTime, Filterable: true, Sortable: true},
		sharedQuery.Field{Name: "closed_at", Column: "closed_at", Kind: sharedQuery.KindTime, Filterable: true, Sortable: true},
	)
	if err != nil {
		// La lista es estática: un error aquí es un bug de programación.
		panic(err)
	}
	return reg
}
