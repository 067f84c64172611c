package mongodb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/flowlab/internal/execution/domain"
	sharedDomain "github.com/davicafu/flowlab/shared/domain"
	sharedQuery "github.com/davicafu/flowlab/shared/query"
)

// ExecutionRepoMongoDB implementa el repositorio sobre MongoDB y expone
// la capacidad de listado por cursor: es el análogo de un servicio
// externo de listado que no soporta offset ni conteo exacto.
type ExecutionRepoMongoDB struct {
	client     *mongo.Client
	execsColl  *mongo.Collection
	outboxColl *mongo.Collection
}

func NewExecutionRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*ExecutionRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	db := client.Database(dbName)
	return &ExecutionRepoMongoDB{
		client:     client,
		execsColl:  db.Collection("executions"),
		outboxColl: db.Collection("outbox"),
	}, nil
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoExecution struct {
	ID          uuid.UUID              `bson:"_id"`
	Workflow    string                 `bson:"workflow"`
	Name        string                 `bson:"name"`
	Status      domain.ExecutionStatus `bson:"status"`
	Owner       string                 `bson:"owner"`
	TaskQueue   string                 `bson:"task_queue"`
	Attempts    int                    `bson:"attempts"`
	SecretToken string                 `bson:"secret_token"`
	CreatedAt   time.Time              `bson:"created_at"`
	ClosedAt    *time.Time             `bson:"closed_at,omitempty"`
}

type mongoOutboxEvent struct {
	ID            uuid.UUID   `bson:"_id"`
	AggregateType string      `bson:"aggregateType"`
	AggregateID   string      `bson:"aggregateId"`
	EventType     string      `bson:"eventType"`
	Payload       interface{} `bson:"payload"`
	CreatedAt     time.Time   `bson:"createdAt"`
	Processed     bool        `bson:"processed"`
}

// --- CRUD Transaccional ---

func (r *ExecutionRepoMongoDB) Create(ctx context.Context, e *domain.Execution, evt sharedDomain.OutboxEvent) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	// La transacción asegura que ambas inserciones sean atómicas.
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := r.execsColl.InsertOne(sessCtx, toMongoExecution(e)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, domain.ErrExecutionAlreadyExists
			}
			return nil, err
		}
		if _, err := r.outboxColl.InsertOne(sessCtx, toMongoOutboxEvent(evt)); err != nil {
			return nil, err
		}
		return nil, nil
	})

	return err
}

func (r *ExecutionRepoMongoDB) Update(ctx context.Context, e *domain.Execution, evt sharedDomain.OutboxEvent) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		me := toMongoExecution(e)
		res, err := r.execsColl.UpdateOne(sessCtx, bson.M{"_id": me.ID}, bson.M{"$set": me})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, domain.ErrExecutionNotFound
		}

		if _, err := r.outboxColl.InsertOne(sessCtx, toMongoOutboxEvent(evt)); err != nil {
			return nil, err
		}
		return nil, nil
	})

	return err
}

// --- Lectura ---

func (r *ExecutionRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	var me mongoExecution
	err := r.execsColl.FindOne(ctx, bson.M{"_id": id}).Decode(&me)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, err
	}
	return fromMongoExecution(&me), nil
}

// ------------------ Backend de consulta (estrategia cursor) ------------------

// cursorToken codifica la posición de continuación: campo de orden,
// último valor visto y último _id (desempate estable). Para el cliente
// es un string opaco en base64.
type cursorToken struct {
	Field string `json:"f"`
	Value string `json:"v"`
	ID    string `json:"id"`
}

func encodeToken(t cursorToken) string {
	data, _ := json.Marshal(t)
	return base64.URLEncoding.EncodeToString(data)
}

func decodeToken(raw string) (cursorToken, error) {
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return cursorToken{}, sharedQuery.ErrStaleCursor
	}
	var t cursorToken
	if err := json.Unmarshal(data, &t); err != nil {
		return cursorToken{}, sharedQuery.ErrStaleCursor
	}
	return t, nil
}

// mongoKey traduce la columna del descriptor a la clave BSON.
func mongoKey(col string) string {
	if col == "id" {
		return "_id"
	}
	return col
}

// sortValueOf extrae el valor de orden de una ejecución, serializado
// para el token de continuación.
func sortValueOf(e *domain.Execution, f sharedQuery.Field) string {
	switch f.Name {
	case "workflow":
		return e.Workflow
	case "name":
		return e.Name
	case "status":
		return string(e.Status)
	case "owner":
		return e.Owner
	case "attempts":
		return strconv.Itoa(e.Attempts)
	case "created_at":
		return e.CreatedAt.Format(time.RFC3339Nano)
	case "closed_at":
		if e.ClosedAt == nil {
			return ""
		}
		return e.ClosedAt.Format(time.RFC3339Nano)
	}
	return e.ID.String()
}

// parseSortValue deshace la serialización según el kind del campo.
func parseSortValue(f sharedQuery.Field, raw string) (any, error) {
	switch f.Kind {
	case sharedQuery.KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, sharedQuery.ErrStaleCursor
		}
		return n, nil
	case sharedQuery.KindTime:
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, sharedQuery.ErrStaleCursor
		}
		return t, nil
	}
	return raw, nil
}

// resumeCondition construye el filtro que retoma la lista justo después
// de la posición codificada en el token. Cuando se ordena por el propio
// _id basta una condición sobre el uuid (compararlo como string contra
// el binData almacenado no casaría nunca el tipo); para el resto de los
// campos se usa el desempate clásico (campo, _id).
func resumeCondition(o sharedQuery.Order, t cursorToken) (bson.M, error) {
	// Un token emitido con otro orden no es reanudable.
	if t.Field != o.Field.Name {
		return nil, sharedQuery.ErrStaleCursor
	}
	lastID, err := uuid.Parse(t.ID)
	if err != nil {
		return nil, sharedQuery.ErrStaleCursor
	}

	cmp := "$gt"
	if o.Desc {
		cmp = "$lt"
	}
	key := mongoKey(o.Field.Column)
	if key == "_id" {
		return bson.M{"_id": bson.M{cmp: lastID}}, nil
	}

	lastValue, err := parseSortValue(o.Field, t.Value)
	if err != nil {
		return nil, err
	}
	return bson.M{"$or": bson.A{
		bson.M{key: bson.M{cmp: lastValue}},
		bson.M{key: lastValue, "_id": bson.M{cmp: lastID}},
	}}, nil
}

// SelectAfter lista pageSize elementos a partir de la posición del token,
// pidiendo uno de más para detectar si existen más páginas.
func (r *ExecutionRepoMongoDB) SelectAfter(ctx context.Context, p sharedQuery.Predicate, o sharedQuery.Order, token string, limit int) ([]*domain.Execution, string, bool, error) {
	filter := predicateToMongoFilter(p)

	if token != "" {
		t, err := decodeToken(token)
		if err != nil {
			return nil, "", false, err
		}
		cursorCond, err := resumeCondition(o, t)
		if err != nil {
			return nil, "", false, err
		}
		filter = bson.M{"$and": bson.A{filter, cursorCond}}
	}

	dir := 1
	if o.Desc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: mongoKey(o.Field.Column), Value: dir}, {Key: "_id", Value: dir}}).
		SetLimit(int64(limit + 1)) // uno extra: sonda de "hay más"

	cursor, err := r.execsColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, "", false, err
	}
	defer cursor.Close(ctx)

	var executions []*domain.Execution
	for cursor.Next(ctx) {
		var me mongoExecution
		if err := cursor.Decode(&me); err != nil {
			return nil, "", false, err
		}
		executions = append(executions, fromMongoExecution(&me))
	}
	if err := cursor.Err(); err != nil {
		return nil, "", false, err
	}

	more := len(executions) > limit
	if more {
		executions = executions[:limit]
	}

	next := ""
	if more && len(executions) > 0 {
		last := executions[len(executions)-1]
		next = encodeToken(cursorToken{
			Field: o.Field.Name,
			Value: sortValueOf(last, o.Field),
			ID:    last.ID.String(),
		})
	}

	return executions, next, more, nil
}

// --- Helpers de Mapeo y Conversión ---

func toMongoExecution(e *domain.Execution) *mongoExecution {
	return &mongoExecution{
		ID: e.ID, Workflow: e.Workflow, Name: e.Name, Status: e.Status,
		Owner: e.Owner, TaskQueue: e.TaskQueue, Attempts: e.Attempts,
		SecretToken: e.SecretToken, CreatedAt: e.CreatedAt, ClosedAt: e.ClosedAt,
	}
}

func fromMongoExecution(me *mongoExecution) *domain.Execution {
	return &domain.Execution{
		ID: me.ID, Workflow: me.Workflow, Name: me.Name, Status: me.Status,
		Owner: me.Owner, TaskQueue: me.TaskQueue, Attempts: me.Attempts,
		SecretToken: me.SecretToken, CreatedAt: me.CreatedAt, ClosedAt: me.ClosedAt,
	}
}

func toMongoOutboxEvent(evt sharedDomain.OutboxEvent) *mongoOutboxEvent {
	return &mongoOutboxEvent{
		ID: evt.ID, AggregateType: evt.AggregateType, AggregateID: evt.AggregateID,
		EventType: evt.EventType, Payload: evt.Payload, CreatedAt: evt.CreatedAt, Processed: false,
	}
}

func predicateToMongoFilter(p sharedQuery.Predicate) bson.M {
	if p.IsEmpty() {
		return bson.M{}
	}

	var conds bson.A
	for _, c := range p.Conditions {
		key := mongoKey(c.Field.Column)

		var cond bson.M
		switch c.Op {
		case sharedQuery.OpEq:
			cond = bson.M{key: bson.M{"$eq": c.Value}}
		case sharedQuery.OpNeq:
			cond = bson.M{key: bson.M{"$ne": c.Value}}
		case sharedQuery.OpGt:
			cond = bson.M{key: bson.M{"$gt": c.Value}}
		case sharedQuery.OpGte:
			cond = bson.M{key: bson.M{"$gte": c.Value}}
		case sharedQuery.OpLt:
			cond = bson.M{key: bson.M{"$lt": c.Value}}
		case sharedQuery.OpLte:
			cond = bson.M{key: bson.M{"$lte": c.Value}}
		case sharedQuery.OpContains:
			cond = bson.M{key: bson.M{"$regex": regexp.QuoteMeta(fmt.Sprint(c.Value))}}
		case sharedQuery.OpIContains:
			cond = bson.M{key: bson.M{"$regex": regexp.QuoteMeta(fmt.Sprint(c.Value)), "$options": "i"}}
		case sharedQuery.OpIn:
			cond = bson.M{key: bson.M{"$in": bson.A(c.Value.([]any))}}
		}
		conds = append(conds, cond)
	}

	if len(conds) == 1 {
		return conds[0].(bson.M)
	}
	return bson.M{"$and": conds}
}

// ------------------ Outbox ------------------

func (r *ExecutionRepoMongoDB) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.outboxColl.Find(ctx, bson.M{"processed": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []sharedDomain.OutboxEvent
	for cursor.Next(ctx) {
		var me mongoOutboxEvent
		if err := cursor.Decode(&me); err != nil {
			return nil, err
		}
		events = append(events, sharedDomain.OutboxEvent{
			ID: me.ID, AggregateType: me.AggregateType, AggregateID: me.AggregateID,
			EventType: me.EventType, Payload: me.Payload, CreatedAt: me.CreatedAt, Processed: me.Processed,
		})
	}
	return events, cursor.Err()
}

func (r *ExecutionRepoMongoDB) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.outboxColl.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"processed": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox event not found: %s", id)
	}
	return nil
}

// Verificaciones estáticas de capacidades.
var (
	_ domain.ExecutionRepository                   = (*ExecutionRepoMongoDB)(nil)
	_ sharedQuery.CursorBackend[*domain.Execution] = (*ExecutionRepoMongoDB)(nil)
)
