package metrics

import "unicode"

// IsInvisible reports whether a rune has no visual representation but
// still affects layout or semantics: control codes, format characters,
// zero-width characters, variation selectors, and blank fillers. Tab,
// newline, carriage return, space, and the ideographic space are
// visible whitespace and excluded.
func IsInvisible(r rune) bool {
	if r <= 0x1F {
		return r != '\t' && r != '\n' && r != '\r'
	}
	// DEL and the C1 controls.
	if r >= 0x7F && r <= 0x9F {
		return true
	}
	if unicode.IsSpace(r) && r != ' ' && r != '　' {
		return true
	}
	return inRanges(r, formatChars) || inRanges(r, invisibleChars)
}

// ReplacementGlyph returns a visible stand-in for an invisible rune.
// ASCII controls map to the Control Pictures block (U+2400 mirrors the
// code value), DEL to its own symbol, and most others to a figure
// space. Runes that take part in combining or joining sequences report
// false and should be rendered as-is.
func ReplacementGlyph(r rune) (string, bool) {
	if r >= 0 && r <= 0x1F {
		return string(rune(0x2400 + r)), true
	}
	if r == 0x7F {
		return delSymbol, true
	}
	if inRanges(r, preservedChars) {
		return "", false
	}
	return replacementSpace, true
}

const (
	// Figure space, fixed width.
	replacementSpace = " "
	// Symbol for delete.
	delSymbol = "␡"
)

// Unicode Cf (format) characters: BOM, directional marks, joiners.
var formatChars = [][2]rune{
	{0xAD, 0xAD},
	{0x600, 0x605},
	{0x61C, 0x61C},
	{0x6DD, 0x6DD},
	{0x70F, 0x70F},
	{0x890, 0x891},
	{0x8E2, 0x8E2},
	{0x180E, 0x180E},
	{0x200B, 0x200F},
	{0x202A, 0x202E},
	{0x2060, 0x2064},
	{0x2066, 0x206F},
	{0xFEFF, 0xFEFF},
	{0xFFF9, 0xFFFB},
	{0x110BD, 0x110BD},
	{0x110CD, 0x110CD},
	{0x13430, 0x1343F},
	{0x1BCA0, 0x1BCA3},
	{0x1D173, 0x1D17A},
	{0xE0001, 0xE0001},
	{0xE0020, 0xE007F},
}

// Invisible characters outside Cf: variation selectors, fillers,
// the braille blank.
var invisibleChars = [][2]rune{
	{0x34F, 0x34F},
	{0x115F, 0x1160},
	{0x17B4, 0x17B5},
	{0x180B, 0x180D},
	{0x2800, 0x2800},
	{0x3164, 0x3164},
	{0xFE00, 0xFE0F},
	{0xFFA0, 0xFFA0},
	{0xFFFC, 0xFFFC},
	{0xE0100, 0xE01EF},
}

// Kept as-is because they participate in combining sequences, emoji
// joining, or complex scripts.
var preservedChars = [][2]rune{
	{0x34F, 0x34F},
	{0x200D, 0x200D},
	{0x17B4, 0x17B5},
	{0x180B, 0x180D},
}

// inRanges expects sorted, non-overlapping ranges.
func inRanges(r rune, ranges [][2]rune) bool {
	for _, span := range ranges {
		if r < span[0] {
			return false
		}
		if r <= span[1] {
			return true
		}
	}
	return false
}
