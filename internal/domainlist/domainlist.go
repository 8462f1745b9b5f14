// Package domainlist reads domain names from plain or comma-separated files.
package domainlist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ndejong/domain-email-records/internal/filesys"
)

// ErrInvalidColumn is returned for a CSV column below one.
var ErrInvalidColumn = errors.New("csv column must be at least 1")

// Loader reads domain lists through a FileOps.
type Loader struct {
	fs     filesys.FileOps
	column int
}

// New returns a Loader taking the domain from the 1-based column of CSV lines.
func New(fsys filesys.FileOps, column int) *Loader {
	return &Loader{fs: fsys, column: column}
}

// Load reads the domains in path.
func (l *Loader) Load(path string) ([]string, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading domain list: %w", err)
	}
	domains, err := Parse(bytes.NewReader(data), l.column)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return domains, nil
}

// Parse returns one domain per non-blank line of r, in order. A line
// holding a comma is split on commas and contributes its column'th field,
// or nothing when it has fewer fields. Other lines are taken whole.
// Values are trimmed but otherwise not validated.
func Parse(r io.Reader, column int) ([]string, error) {
	if column < 1 {
		return nil, ErrInvalidColumn
	}

	var domains []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, ",") {
			fields := strings.Split(strings.TrimSpace(line), ",")
			if len(fields) < column {
				continue
			}
			line = fields[column-1]
		}
		if d := strings.TrimSpace(line); d != "" {
			domains = append(domains, d)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return domains, nil
}

// Split expands command-line values, each of which may hold several
// domains separated by commas or whitespace.
func Split(values []string) []string {
	var domains []string
	for _, v := range values {
		for _, d := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		}) {
			domains = append(domains, d)
		}
	}
	return domains
}
