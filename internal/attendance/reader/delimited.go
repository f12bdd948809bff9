package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/punchflow/punchflow/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DelimitedOptions describes a plain text table.
type DelimitedOptions struct {
	Delimiter string
	Encoding  string
}

// Decoder returns the text decoder for an encoding name. UTF-8 input always
// has a leading byte order mark stripped.
func Decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "big5", "cp950":
		return traditionalchinese.Big5.NewDecoder(), nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// OpenDelimited reads a delimited text file as a single sheet workbook.
func OpenDelimited(path string, opts DelimitedOptions) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errors.FileFormatError{File: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()

	return ReadDelimited(path, f, opts)
}

// ReadDelimited decodes r with the configured encoding and splits it on the
// configured delimiter.
func ReadDelimited(name string, r io.Reader, opts DelimitedOptions) (*Workbook, error) {
	dec, err := Decoder(opts.Encoding)
	if err != nil {
		return nil, &errors.FileFormatError{File: name, Reason: err.Error()}
	}

	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opts.Delimiter != "" {
		delim, size := utf8.DecodeRuneInString(opts.Delimiter)
		if size != len(opts.Delimiter) {
			return nil, &errors.FileFormatError{File: name, Reason: fmt.Sprintf("delimiter %q must be a single character", opts.Delimiter)}
		}
		cr.Comma = delim
	} else if strings.EqualFold(filepath.Ext(name), ".tsv") {
		cr.Comma = '\t'
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, &errors.FileFormatError{File: name, Reason: "malformed delimited text", Err: err}
	}

	return &Workbook{
		Path:   name,
		Sheets: []Sheet{{Name: filepath.Base(name), Rows: rows}},
	}, nil
}
