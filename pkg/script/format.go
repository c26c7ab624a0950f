package script

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the encoding of a script file
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// Detect derives format and compression from a file name such as
// "queries.yaml" or "queries.json.zst"
func Detect(path string) (Format, Compression, error) {
	name := strings.ToLower(filepath.Base(path))

	compression := CompressionNone
	for _, c := range []Compression{CompressionZstd, CompressionSnappy} {
		if strings.HasSuffix(name, c.Extension()) {
			compression = c
			name = strings.TrimSuffix(name, c.Extension())
			break
		}
	}

	switch filepath.Ext(name) {
	case ".json":
		return FormatJSON, compression, nil
	case ".yaml", ".yml":
		return FormatYAML, compression, nil
	default:
		return 0, 0, fmt.Errorf("%w: cannot tell the format of %s", ErrInvalidScript, path)
	}
}
