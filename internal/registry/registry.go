package registry

import (
	"fmt"
	"sort"
	"sync"
)

// ---------------- Registro de workflows y actividades ----------------

// WorkflowDefinition describe un workflow registrado y las actividades
// que declara usar.
type WorkflowDefinition struct {
	Name       string
	Activities []string
}

// Registry mantiene los workflows y actividades conocidos. Se puebla
// durante el arranque y después es de solo lectura; el mutex solo
// protege la fase de registro.
type Registry struct {
	mu         sync.RWMutex
	workflows  map[string]WorkflowDefinition
	activities map[string]bool
}

func New() *Registry {
	return &Registry{
		workflows:  make(map[string]WorkflowDefinition),
		activities: make(map[string]bool),
	}
}

// RegisterWorkflow registra un workflow con sus actividades declaradas.
// Registrar dos veces el mismo nombre es un error.
func (r *Registry) RegisterWorkflow(name string, activities []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		return fmt.Errorf("workflow name cannot be empty")
	}
	if _, exists := r.workflows[name]; exists {
		return fmt.Errorf("workflow %q is already registered", name)
	}
	r.workflows[name] = WorkflowDefinition{Name: name, Activities: activities}
	return nil
}

// RegisterActivity registra una actividad por nombre.
func (r *Registry) RegisterActivity(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		return fmt.Errorf("activity name cannot be empty")
	}
	if r.activities[name] {
		return fmt.Errorf("activity %q is already registered", name)
	}
	r.activities[name] = true
	return nil
}

// Workflow busca un workflow registrado.
func (r *Registry) Workflow(name string) (WorkflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.workflows[name]
	return wf, ok
}

// HasActivity indica si la actividad está registrada.
func (r *Registry) HasActivity(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activities[name]
}

// MissingActivities devuelve las actividades declaradas por un workflow
// que no están registradas, ordenadas para mensajes deterministas.
func (r *Registry) MissingActivities(wf WorkflowDefinition) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, act := range wf.Activities {
		if !r.activities[act] {
			missing = append(missing, act)
		}
	}
	sort.Strings(missing)
	return missing
}
