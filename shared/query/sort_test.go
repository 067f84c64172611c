package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildOrder_Explicit(t *testing.T) {
	reg := newTestRegistry(t)

	order := BuildOrder(reg, "created_at", "desc")
	assert.Equal(t, "created_at", order.Field.Name)
	assert.True(t, order.Desc)

	order = BuildOrder(reg, "name", "asc")
	assert.Equal(t, "name", order.Field.Name)
	assert.False(t, order.Desc)
}

func TestBuildOrder_DefaultsToPrimary(t *testing.T) {
	reg := newTestRegistry(t)

	order := BuildOrder(reg, "", "")
	assert.Equal(t, reg.Primary().Name, order.Field.Name)
	assert.False(t, order.Desc)
}

func TestBuildOrder_UnknownFieldFallsBack(t *testing.T) {
	reg := newTestRegistry(t)

	// Un campo desconocido nunca deja la consulta sin orden estable.
	order := BuildOrder(reg, "secret_token", "desc")
	assert.Equal(t, reg.Primary().Name, order.Field.Name)
	assert.False(t, order.Desc)
}
