package mongodb

import (
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	sharedQuery "github.com/davicafu/flowlab/shared/query"
)

var (
	idField       = sharedQuery.Field{Name: "id", Column: "id", Kind: sharedQuery.KindText, Filterable: true, Sortable: true}
	nameField     = sharedQuery.Field{Name: "name", Column: "name", Kind: sharedQuery.KindText, Filterable: true, Sortable: true}
	attemptsField = sharedQuery.Field{Name: "attempts", Column: "attempts", Kind: sharedQuery.KindNumber, Filterable: true, Sortable: true}
)

// -------------------- Tokens de cursor --------------------

func TestCursorToken_RoundTrip(t *testing.T) {
	original := cursorToken{Field: "name", Value: "beta", ID: uuid.NewString()}

	decoded, err := decodeToken(encodeToken(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeToken_Garbage(t *testing.T) {
	// Ni base64 inválido ni JSON corrupto deben filtrarse como errores
	// internos: ambos son un cursor caducado para el cliente.
	_, err := decodeToken("%%%not-base64%%%")
	assert.ErrorIs(t, err, sharedQuery.ErrStaleCursor)

	_, err = decodeToken(base64.URLEncoding.EncodeToString([]byte("not json")))
	assert.ErrorIs(t, err, sharedQuery.ErrStaleCursor)
}

// -------------------- Condición de reanudación --------------------

func TestResumeCondition_SortByID(t *testing.T) {
	lastID := uuid.New()
	token := cursorToken{Field: "id", Value: lastID.String(), ID: lastID.String()}

	cond, err := resumeCondition(sharedQuery.Order{Field: idField}, token)
	require.NoError(t, err)

	// Ordenando por _id la condición compara contra el uuid tipado;
	// un string no casaría jamás con el binData almacenado.
	assert.Equal(t, bson.M{"_id": bson.M{"$gt": lastID}}, cond)
}

func TestResumeCondition_SortByIDDesc(t *testing.T) {
	lastID := uuid.New()
	token := cursorToken{Field: "id", Value: lastID.String(), ID: lastID.String()}

	cond, err := resumeCondition(sharedQuery.Order{Field: idField, Desc: true}, token)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": bson.M{"$lt": lastID}}, cond)
}

func TestResumeCondition_SortByOtherField(t *testing.T) {
	lastID := uuid.New()
	token := cursorToken{Field: "name", Value: "beta", ID: lastID.String()}

	cond, err := resumeCondition(sharedQuery.Order{Field: nameField}, token)
	require.NoError(t, err)

	// Desempate clásico: estrictamente mayor en el campo, o igual en el
	// campo y estrictamente mayor en _id.
	expected := bson.M{"$or": bson.A{
		bson.M{"name": bson.M{"$gt": "beta"}},
		bson.M{"name": "beta", "_id": bson.M{"$gt": lastID}},
	}}
	assert.Equal(t, expected, cond)
}

func TestResumeCondition_FieldMismatch(t *testing.T) {
	token := cursorToken{Field: "name", Value: "beta", ID: uuid.NewString()}

	_, err := resumeCondition(sharedQuery.Order{Field: idField}, token)
	assert.ErrorIs(t, err, sharedQuery.ErrStaleCursor)
}

func TestResumeCondition_CorruptID(t *testing.T) {
	token := cursorToken{Field: "id", Value: "whatever", ID: "not-a-uuid"}

	_, err := resumeCondition(sharedQuery.Order{Field: idField}, token)
	assert.ErrorIs(t, err, sharedQuery.ErrStaleCursor)
}

func TestResumeCondition_CorruptValue(t *testing.T) {
	token := cursorToken{Field: "attempts", Value: "three", ID: uuid.NewString()}

	_, err := resumeCondition(sharedQuery.Order{Field: attemptsField}, token)
	assert.ErrorIs(t, err, sharedQuery.ErrStaleCursor)
}
