package scanner

// NextField returns the next whitespace separated token of line starting at
// pos, and the position right after it. ok is false when no token is left.
func NextField(line []byte, pos int) (field []byte, next int, ok bool) {
	i := pos
	for i < len(line) && IsSpace(line[i]) {
		i++
	}
	if i >= len(line) {
		return nil, i, false
	}
	start := i
	for i < len(line) && !IsSpace(line[i]) {
		i++
	}
	return line[start:i], i, true
}

// Fields splits line on whitespace without allocating the tokens.
func Fields(line []byte) [][]byte {
	var out [][]byte
	pos := 0
	for {
		f, next, ok := NextField(line, pos)
		if !ok {
			return out
		}
		out = append(out, f)
		pos = next
	}
}

// HexDigit converts one hex digit. '-' reads as zero.
func HexDigit(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b == '-':
		return 0, true
	}
	return 0, false
}

// ParseHexUint parses a hex token of at most 16 digits, with an optional 0x prefix.
func ParseHexUint(tok []byte) (uint64, bool) {
	tok = TrimHexPrefix(tok)
	if len(tok) == 0 || len(tok) > 16 {
		return 0, false
	}
	var v uint64
	for _, c := range tok {
		d, ok := HexDigit(c)
		if !ok {
			return 0, false
		}
		v = v<<4 | uint64(d)
	}
	return v, true
}

// ParseHexUint128 parses a hex token of at most 32 digits into hi and lo halves.
func ParseHexUint128(tok []byte) (hi, lo uint64, ok bool) {
	tok = TrimHexPrefix(tok)
	if len(tok) == 0 || len(tok) > 32 {
		return 0, 0, false
	}
	for _, c := range tok {
		d, valid := HexDigit(c)
		if !valid {
			return 0, 0, false
		}
		hi = hi<<4 | lo>>60
		lo = lo<<4 | uint64(d)
	}
	return hi, lo, true
}

func TrimHexPrefix(tok []byte) []byte {
	if len(tok) >= 2 && tok[0] == '0' && (tok[1] == 'x' || tok[1] == 'X') {
		return tok[2:]
	}
	return tok
}

// StripSpaces drops every whitespace byte of line in place and returns the
// shortened slice.
func StripSpaces(line []byte) []byte {
	n := 0
	for _, c := range line {
		if !IsSpace(c) {
			line[n] = c
			n++
		}
	}
	return line[:n]
}

// IsBlankOrComment reports whether line carries no vector.
func IsBlankOrComment(line []byte) bool {
	for _, c := range line {
		if IsSpace(c) {
			continue
		}
		return c == '#'
	}
	return true
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
