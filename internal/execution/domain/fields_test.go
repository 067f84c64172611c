package domain

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Campos que nunca deben ser consultables desde el exterior.
var deniedFields = map[string]bool{
	"SecretToken": true,
}

// El allow-list debe cubrir todos los campos exportados de Execution
// salvo los denegados, y los denegados no deben resolver jamás.
func TestFieldRegistry_CoversEntityFields(t *testing.T) {
	reg := NewFieldRegistry()
	typ := reflect.TypeOf(Execution{})

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		external := strings.Split(field.Tag.Get("json"), ",")[0]

		if deniedFields[field.Name] {
			assert.Equal(t, "-", external, "campo denegado %s no debe serializarse", field.Name)
			continue
		}

		_, ok := reg.Resolve(external)
		assert.True(t, ok, "campo %s (%s) sin descriptor en el registro", field.Name, external)
	}
}

func TestFieldRegistry_DeniedFieldUnresolvable(t *testing.T) {
	reg := NewFieldRegistry()

	for _, name := range []string{"secret_token", "SecretToken", "nonexistent"} {
		_, ok := reg.Resolve(name)
		assert.False(t, ok, "campo %s no debería resolver", name)
	}
}

func TestFieldRegistry_PrimaryIsID(t *testing.T) {
	reg := NewFieldRegistry()
	assert.Equal(t, "id", reg.Primary().Name)
	assert.Equal(t, "execution", reg.Entity())
}
