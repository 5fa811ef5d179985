// Package formats provides parsers for Wavefront model files: OBJ geometry
// and MTL material libraries.
package formats

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// lineParser is called once per non-empty, non-comment line.
type lineParser func(keyword string, args []string) error

// scanLines feeds each meaningful line of data to parse. Errors are wrapped
// with the 1-based line number.
func scanLines(data []byte, parse lineParser) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	var cont string
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		// A trailing backslash joins the next line.
		if strings.HasSuffix(line, "\\") {
			cont += strings.TrimSuffix(line, "\\") + " "
			continue
		}
		line = cont + line
		cont = ""

		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := parse(fields[0], fields[1:]); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return sc.Err()
}

// parseFloats parses exactly len(dst) leading args into dst. Extra args are
// ignored.
func parseFloats(args []string, dst []float32) error {
	if len(args) < len(dst) {
		return fmt.Errorf("expected %d values, got %d", len(dst), len(args))
	}
	for i := range dst {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return fmt.Errorf("invalid number %q", args[i])
		}
		dst[i] = float32(f)
	}
	return nil
}

func parseScalar(args []string) (float32, error) {
	var v [1]float32
	err := parseFloats(args, v[:])
	return v[0], err
}

// restOfLine rejoins args, for names that may contain spaces.
func restOfLine(args []string) string {
	return strings.Join(args, " ")
}
