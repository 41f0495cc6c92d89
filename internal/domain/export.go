package domain

import "strings"

type ModelFormat string

const (
	FormatJSON ModelFormat = "json"
	FormatYAML ModelFormat = "yaml"
	FormatTOML ModelFormat = "toml"
)

func ParseModelFormat(raw string) (ModelFormat, error) {
	switch format := ModelFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case FormatJSON, FormatYAML, FormatTOML:
		return format, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", invalidArgument("model format %q", raw)
	}
}

type AspectConfiguration struct {
	// IncludeValues exports initial values next to types.
	IncludeValues bool
	// Watched limits value export to these pointers when non-empty.
	Watched []Pointer
}

func (c AspectConfiguration) Watches(p Pointer) bool {
	if len(c.Watched) == 0 {
		return true
	}
	for _, w := range c.Watched {
		if w == p {
			return true
		}
	}
	return false
}
