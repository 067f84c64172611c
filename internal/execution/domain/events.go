package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/flowlab/shared/events"
)

// Las constantes de los tipos de evento se definen aquí, como valores string.
const (
	ExecutionStarted   = "execution.started"
	ExecutionCompleted = "execution.completed"
	ExecutionFailed    = "execution.failed"
	ExecutionCanceled  = "execution.canceled"
)

const ExecutionTopic = "execution"

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		ExecutionStarted: {
			Type:  reflect.TypeOf(Execution{}),
			Topic: ExecutionTopic,
		},
		ExecutionCompleted: {
			Type:  reflect.TypeOf(Execution{}),
			Topic: ExecutionTopic,
		},
		ExecutionFailed: {
			Type:  reflect.TypeOf(Execution{}),
			Topic: ExecutionTopic,
		},
		ExecutionCanceled: {
			Type:  reflect.TypeOf(Execution{}),
			Topic: ExecutionTopic,
		},
	}
}
