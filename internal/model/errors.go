package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("not found")
	// ErrNotAllowed операция запрещена текущим статусом бронирования
	ErrNotAllowed = errors.New("operation not allowed in current booking state")
	// ErrStaleResponse ответ устарел: уже применён более новый
	ErrStaleResponse = errors.New("stale response discarded")
)

// FieldError ошибка конкретного поля
type FieldError struct {
	Field string
	Msg   string
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// ValidationError локальная ошибка валидации. Удалённый вызов при ней не выполняется.
type ValidationError struct {
	Fields []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError создаёт ошибку валидации одного поля
func NewValidationError(field, msg string) ValidationError {
	return ValidationError{Fields: []FieldError{{Field: field, Msg: msg}}}
}

// RemoteFailure ошибка удалённой стороны (БД, платёжный шлюз). Операция считается не применённой.
type RemoteFailure struct {
	Op  string
	Err error
}

func (e RemoteFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e RemoteFailure) Unwrap() error { return e.Err }

// CapacityConflict не хватает свободных мест на выбранные дату и время
type CapacityConflict struct {
	Date      string
	Time      string
	Requested int
	Remaining int
}

func (e CapacityConflict) Error() string {
	return fmt.Sprintf("capacity conflict at %s %s: requested %d, remaining %d",
		e.Date, e.Time, e.Requested, e.Remaining)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsRemote(err error) bool {
	var target RemoteFailure
	return errors.As(err, &target)
}

func IsCapacityConflict(err error) bool {
	var target CapacityConflict
	return errors.As(err, &target)
}
