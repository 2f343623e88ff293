package quantum

import "github.com/smarttree/smarttree/internal/stree"

// The local stdio framing companion protocol cannot carry raw ESC or NUL
// bytes; they are escaped on the wire and restored on receipt:
//
//	0x1B 0x1B -> literal 0x1B
//	0x1B 0x00 -> literal 0x00
const (
	escByte = 0x1B
	nulByte = 0x00
)

// Escape rewrites raw quantum bytes for stdio framing.
func Escape(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		switch b {
		case escByte:
			out = append(out, escByte, escByte)
		case nulByte:
			out = append(out, escByte, nulByte)
		default:
			out = append(out, b)
		}
	}
	return out
}

// Unescape is the inverse of Escape. A trailing or malformed escape
// sequence is a framing error.
func Unescape(wire []byte) ([]byte, error) {
	out := make([]byte, 0, len(wire))
	for i := 0; i < len(wire); i++ {
		b := wire[i]
		if b != escByte {
			if b == nulByte {
				return nil, newCorrupt("unescaped NUL byte in frame")
			}
			out = append(out, b)
			continue
		}
		i++
		if i >= len(wire) {
			return nil, newCorrupt("truncated escape sequence")
		}
		switch wire[i] {
		case escByte:
			out = append(out, escByte)
		case nulByte:
			out = append(out, nulByte)
		default:
			return nil, newCorrupt("unknown escape sequence")
		}
	}
	return out, nil
}

// newCorrupt tags a malformed-stream failure with the ParseError code so
// the tool server's envelope conversion is uniform.
func newCorrupt(msg string) error {
	return stree.New(stree.CodeParseError, "quantum stream: "+msg, nil)
}
