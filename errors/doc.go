// Package errors provides structured error types for the injector and the
// script runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Every rejection condition of the injector has its own Kind so
// callers can tell them apart:
//
//	_, err := inject.Inject(shell, script, inject.Options{})
//	if errors.Is(err, errors.ErrCapacity) {
//		// the shell's maximum memory is too small for the script
//	}
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseInject, errors.KindCapacity).
//		Detail("script needs %d pages, maximum is %d", need, max).
//		Build()
//
// Is, As and Join forward to the standard library so callers need a single
// errors import.
package errors
