package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoTransaction se devuelve cuando una operación que exige transacción
// se invoca sin una abierta en el contexto.
var ErrNoTransaction = errors.New("no transaction in context")

// TransactionError indica que el store no pudo garantizar la atomicidad
// entre la mutación de dominio y el registro de outbox.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// TransientBrokerError envuelve fallos de red o de disponibilidad del broker.
type TransientBrokerError struct {
	Err error
}

func (e *TransientBrokerError) Error() string {
	return fmt.Sprintf("transient broker error: %v", e.Err)
}

func (e *TransientBrokerError) Unwrap() error { return e.Err }

// IsTransient informa si el error merece reintento en el publisher.
func IsTransient(err error) bool {
	var t *TransientBrokerError
	return errors.As(err, &t)
}

// HandlerError es la respuesta de un handler de consumidor: reintentable o fatal.
type HandlerError struct {
	Err   error
	fatal bool
}

func (e *HandlerError) Error() string {
	if e.fatal {
		return fmt.Sprintf("fatal handler error: %v", e.Err)
	}
	return fmt.Sprintf("retryable handler error: %v", e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// IsFatal sólo es cierto para errores marcados explícitamente como fatales.
func (e *HandlerError) IsFatal() bool { return e.fatal }

// Retryable marca un fallo que puede resolverse reintentando.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &HandlerError{Err: err}
}

// Fatal marca un fallo que ningún reintento va a resolver.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &HandlerError{Err: err, fatal: true}
}

// IsFatal: un error sin clasificar se considera reintentable.
func IsFatal(err error) bool {
	var h *HandlerError
	if errors.As(err, &h) {
		return h.fatal
	}
	return false
}

// TopicMismatchError: un grupo se suscribe a un topic que ningún productor usa.
// Es un fallo de configuración en arranque.
type TopicMismatchError struct {
	Source string
	Topic  string
	Known  []string
}

func (e *TopicMismatchError) Error() string {
	known := append([]string(nil), e.Known...)
	sort.Strings(known)
	return fmt.Sprintf("topic mismatch: %s subscribes to %q but producers publish to [%s]",
		e.Source, e.Topic, strings.Join(known, ", "))
}
