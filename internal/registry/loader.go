package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------- Configuración YAML ----------------

// WorkflowConfig es una entrada del fichero de configuración.
type WorkflowConfig struct {
	Name      string `yaml:"name"`
	TaskQueue string `yaml:"task_queue"`
}

type Config struct {
	Workflows []WorkflowConfig `yaml:"workflows"`
}

// LoadConfig carga el fichero YAML que define los workflows a servir.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid workflow config: %w", err)
	}
	return &cfg, nil
}

// Validate comprueba la configuración contra el registro: cada workflow
// debe existir, declarar un task queue y tener todas sus actividades
// registradas. Un fallo aquí aborta el arranque.
func Validate(reg *Registry, cfg *Config) error {
	if len(cfg.Workflows) == 0 {
		return fmt.Errorf("no workflows defined in config")
	}

	for _, wc := range cfg.Workflows {
		if wc.Name == "" || wc.TaskQueue == "" {
			return fmt.Errorf("invalid workflow config entry: name=%q task_queue=%q", wc.Name, wc.TaskQueue)
		}

		wf, ok := reg.Workflow(wc.Name)
		if !ok {
			return fmt.Errorf("workflow %q not found in registry", wc.Name)
		}

		if missing := reg.MissingActivities(wf); len(missing) > 0 {
			return fmt.Errorf("workflow %q refers to missing activities: %s", wc.Name, strings.Join(missing, ", "))
		}
	}
	return nil
}
