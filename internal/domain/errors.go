package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrParse — в документе нет ни одной строки, открывающей сообщение.
	ErrParse = errors.New("parse error")
	// ErrValidation — нарушен инвариант метаданных чата.
	ErrValidation = errors.New("validation error")
	// ErrProcessing — внешний сервис (классификатор, анализатор тональности,
	// нормализатор) недоступен или вернул ответ, нарушающий контракт.
	ErrProcessing = errors.New("processing error")
)

// ParseError возвращается, когда ни одна строка не распознана как начало сообщения.
type ParseError struct {
	Lines  int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s (lines scanned: %d)", e.Reason, e.Lines)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValidationError описывает нарушение инварианта метаданных.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ProcessingError оборачивает сбой внешнего сервиса.
type ProcessingError struct {
	// Collaborator — имя сервиса: "classifier", "sentiment" или "normalizer".
	Collaborator string
	Err          error
}

// NewProcessingError оборачивает err в ProcessingError для указанного сервиса.
func NewProcessingError(collaborator string, err error) *ProcessingError {
	return &ProcessingError{Collaborator: collaborator, Err: err}
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: %s: %v", e.Collaborator, e.Err)
}

func (e *ProcessingError) Is(target error) bool { return target == ErrProcessing }

func (e *ProcessingError) Unwrap() error { return e.Err }

// ErrorKind возвращает машиночитаемый код ошибки для внешнего API.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrProcessing):
		return "processing_error"
	default:
		return "internal_error"
	}
}
