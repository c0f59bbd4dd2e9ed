package grammar

// Position is a location in query text.
// Line is 1-based, Column is 0-based in runes, Offset is 0-based in bytes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// PositionAt converts a byte offset in source into a Position. Offsets
// past the end clamp to the end of source.
func PositionAt(source string, offset int) Position {
	if offset > len(source) {
		offset = len(source)
	}
	pos := Position{Line: 1}
	for _, ch := range source[:offset] {
		if ch == '\n' {
			pos.Line++
			pos.Column = 0
		} else {
			pos.Column++
		}
	}
	pos.Offset = offset
	return pos
}
