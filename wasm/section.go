package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/lasr/wasm/internal/binary"
)

// ErrBadHeader is returned when data does not start with a version 1 module header.
var ErrBadHeader = errors.New("wasm: invalid magic number or version")

// Section is a raw section: its id and payload without the size prefix.
type Section struct {
	Data []byte
	ID   byte
}

// ReadSections splits a module binary into its sections in original order.
// Payloads alias data.
func ReadSections(data []byte) ([]Section, error) {
	r := binary.NewReader(data)
	magic, err := r.ReadU32LE()
	if err != nil || magic != Magic {
		return nil, ErrBadHeader
	}
	version, err := r.ReadU32LE()
	if err != nil || version != Version {
		return nil, ErrBadHeader
	}

	var sections []Section
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}
		if id > SectionTag {
			return nil, r.WrapError("section header", fmt.Errorf("unknown section id %d", id))
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError(SectionName(id), err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError(SectionName(id), err)
		}
		sections = append(sections, Section{ID: id, Data: payload})
	}
	return sections, nil
}

// AssembleSections writes the module header followed by every section.
func AssembleSections(sections []Section) []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)
	for _, s := range sections {
		writeSection(w, s.ID, s.Data)
	}
	return w.Bytes()
}

func writeSection(w *binary.Writer, id byte, data []byte) {
	w.Byte(id)
	w.WriteSized(data)
}

// SectionName returns a readable name for a section id.
func SectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom"
	case SectionType:
		return "type"
	case SectionImport:
		return "import"
	case SectionFunction:
		return "function"
	case SectionTable:
		return "table"
	case SectionMemory:
		return "memory"
	case SectionGlobal:
		return "global"
	case SectionExport:
		return "export"
	case SectionStart:
		return "start"
	case SectionElement:
		return "element"
	case SectionCode:
		return "code"
	case SectionData:
		return "data"
	case SectionDataCount:
		return "datacount"
	case SectionTag:
		return "tag"
	}
	return fmt.Sprintf("section(%d)", id)
}
