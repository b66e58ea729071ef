// Package inject embeds a script into a shell module.
//
// The shell is a core WebAssembly module with exactly one 32-bit memory and an
// exported function (by default "lasr_script"). Injection appends the script
// as a new active data segment above the shell's current memory, grows the
// memory's initial size to cover it, and replaces the body of the function
// the export delegates to with one that stores the script's {offset, length}
// into the record passed by pointer. The export itself is removed and its
// body emptied. Every other section is copied byte for byte.
//
//	out, err := inject.Inject(shell, script, inject.Options{})
//	if errors.Is(err, errors.ErrCapacity) {
//		// the shell's maximum memory cannot hold the script
//	}
//
// Injection is all or nothing: on error no output is produced.
package inject
