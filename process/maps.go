package process

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseMaps parses the /proc/<pid>/maps format:
//
//	00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/dbus-daemon
func ParseMaps(r io.Reader) ([]Region, error) {
	var regions []Region
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for line := 1; sc.Scan(); line++ {
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		reg, err := parseMapsLine(text)
		if err != nil {
			return nil, fmt.Errorf("maps line %d: %w", line, err)
		}
		regions = append(regions, reg)
	}
	return regions, sc.Err()
}

func parseMapsLine(line string) (Region, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Region{}, fmt.Errorf("expected at least 5 fields, got %d", len(fields))
	}
	lo, hi, ok := strings.Cut(fields[0], "-")
	if !ok {
		return Region{}, fmt.Errorf("bad address range %q", fields[0])
	}
	start, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return Region{}, err
	}
	end, err := strconv.ParseUint(hi, 16, 64)
	if err != nil {
		return Region{}, err
	}
	if end < start {
		return Region{}, fmt.Errorf("range end below start: %q", fields[0])
	}
	reg := Region{Start: start, End: end, Perms: fields[1]}
	// the path may contain spaces, so take everything after field five
	rest := line
	for i := 0; i < 5 && rest != ""; i++ {
		rest = strings.TrimLeft(rest, " \t")
		if j := strings.IndexAny(rest, " \t"); j >= 0 {
			rest = rest[j:]
		} else {
			rest = ""
		}
	}
	reg.Name = strings.TrimSpace(rest)
	return reg, nil
}
