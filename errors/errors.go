package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseInject  Phase = "inject"  // script embedding
	PhaseLoad    Phase = "load"    // artifact loading and script extraction
	PhaseProcess Phase = "process" // attach, memory reads, region listing
	PhaseMemory  Phase = "memory"  // address resolution and typed reads
	PhaseScan    Phase = "scan"    // signature parsing and scanning
	PhaseHost    Phase = "host"    // capability calls from scripts
	PhaseScript  Phase = "script"  // script execution
	PhaseTimer   Phase = "timer"   // timer backends
	PhaseConfig  Phase = "config"  // configuration
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData        Kind = "invalid_data"
	KindMissingMemory      Kind = "missing_memory"
	KindMultipleMemories   Kind = "multiple_memories"
	KindUnsupportedMemory  Kind = "unsupported_memory"
	KindMissingCode        Kind = "missing_code"
	KindExportNotFound     Kind = "export_not_found"
	KindImportedExport     Kind = "imported_export"
	KindUnsupportedSegment Kind = "unsupported_segment"
	KindCapacity           Kind = "capacity"
	KindOverflow           Kind = "overflow"
	KindSignature          Kind = "signature_mismatch"
	KindNotFound           Kind = "not_found"
	KindNotAttached        Kind = "not_attached"
	KindReadFailed         Kind = "read_failed"
	KindInvalidType        Kind = "invalid_type"
	KindInvalidSize        Kind = "invalid_size"
	KindInvalidPattern     Kind = "invalid_pattern"
	KindInvalidArgument    Kind = "invalid_argument"
	KindInvalidInput       Kind = "invalid_input"
	KindUnsupported        Kind = "unsupported"
	KindExecution          Kind = "execution"
	KindBackend            Kind = "backend"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two errors match when they
// share phase and kind, so sentinels match any error built for the same
// condition.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path to the offending item
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinels for errors.Is matching. Each is matched by phase and kind only.
var (
	ErrMissingMemory      = &Error{Phase: PhaseInject, Kind: KindMissingMemory}
	ErrMultipleMemories   = &Error{Phase: PhaseInject, Kind: KindMultipleMemories}
	ErrUnsupportedMemory  = &Error{Phase: PhaseInject, Kind: KindUnsupportedMemory}
	ErrMissingCode        = &Error{Phase: PhaseInject, Kind: KindMissingCode}
	ErrExportNotFound     = &Error{Phase: PhaseInject, Kind: KindExportNotFound}
	ErrImportedExport     = &Error{Phase: PhaseInject, Kind: KindImportedExport}
	ErrUnsupportedSegment = &Error{Phase: PhaseInject, Kind: KindUnsupportedSegment}
	ErrCapacity           = &Error{Phase: PhaseInject, Kind: KindCapacity}
	ErrOverflow           = &Error{Phase: PhaseInject, Kind: KindOverflow}
	ErrSignature          = &Error{Phase: PhaseInject, Kind: KindSignature}
	ErrMalformed          = &Error{Phase: PhaseInject, Kind: KindInvalidData}

	ErrNoScript = &Error{Phase: PhaseLoad, Kind: KindNotFound}

	ErrProcessNotFound = &Error{Phase: PhaseProcess, Kind: KindNotFound}
	ErrReadFailed      = &Error{Phase: PhaseProcess, Kind: KindReadFailed}

	ErrInvalidType    = &Error{Phase: PhaseMemory, Kind: KindInvalidType}
	ErrInvalidSize    = &Error{Phase: PhaseMemory, Kind: KindInvalidSize}
	ErrInvalidPattern = &Error{Phase: PhaseScan, Kind: KindInvalidPattern}

	ErrNotAttached = &Error{Phase: PhaseHost, Kind: KindNotAttached}
	ErrScript      = &Error{Phase: PhaseScript, Kind: KindExecution}

	ErrTimerBackend = &Error{Phase: PhaseTimer, Kind: KindBackend}

	ErrInvalidConfig = &Error{Phase: PhaseConfig, Kind: KindInvalidInput}
)

// Convenience constructors for common error patterns

// Wrap wraps an error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Cause:  cause,
		Detail: detail,
	}
}

// Malformed creates an injection error for an unparseable input module
func Malformed(section string, cause error) *Error {
	return &Error{
		Phase:  PhaseInject,
		Kind:   KindInvalidData,
		Path:   []string{section},
		Detail: "malformed section",
		Cause:  cause,
	}
}

// Overflow creates an error for a value that does not fit its target width
func Overflow(phase Phase, what string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   []string{what},
		Value:  value,
		Detail: fmt.Sprintf("value %v does not fit %s", value, target),
	}
}

// NotFound creates a not found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// ReadFailed creates a memory read error for the given address
func ReadFailed(addr uint64, size int, cause error) *Error {
	return &Error{
		Phase:  PhaseProcess,
		Kind:   KindReadFailed,
		Value:  addr,
		Detail: fmt.Sprintf("read %d bytes at 0x%x", size, addr),
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what + " is not supported",
	}
}

// Load creates a load phase error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// Plain returns an unstructured error with the given text.
func Plain(text string) error {
	return stderrors.New(text)
}
