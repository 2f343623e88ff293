// Package quantum implements the bitfield-delta binary scan encoding:
// the token table, the per-entry framing with traversal opcodes, the
// stream header with CRC verification, and the decoder that reconstructs
// the original event stream so other encodings can be derived without
// rescanning the filesystem.
package quantum

// Stream framing:
//
//	magic      "QUANTUM_NATIVE_V1"
//	endian     1 byte (0x00 = network byte order; varints are order-free)
//	crc32      4 bytes, IEEE, over the DATA section (patched after encode)
//	tokens     zero or more "TOKENS: <id>=<pattern>\n" lines
//	data       "DATA:" followed by entries
//
// Per entry: [traversal-opcode][header-byte][delta-fields][name-or-token].
// Delta fields appear iff their flag is set, in the order size, perms,
// owner/group, mtime, symlink-target, xattrs.
const (
	Magic = "QUANTUM_NATIVE_V1"

	endianNetwork byte = 0x00
)

// Header-byte flags.
const (
	FlagSize       byte = 0x01 // size varint follows
	FlagPermsDelta byte = 0x02 // perms differ from parent; varint XOR delta follows
	FlagOwnerDelta byte = 0x04 // uid/gid differ from parent; two varint XOR deltas follow
	FlagMTimeDelta byte = 0x08 // mtime differs from parent; signed varint delta follows
	FlagDir        byte = 0x10
	FlagSymlink    byte = 0x20 // FlagDir|FlagSymlink together tag an "other" entry
	FlagXattr      byte = 0x40 // length-prefixed opaque blob follows
	FlagTokenName  byte = 0x80 // name is a token-table id, not a literal
)

// Traversal opcodes. SameLevel and Descend introduce an entry record;
// Ascend closes a directory; SummaryFollows introduces the trailing
// statistics block. The opcode leads its entry on the wire so the stream
// stays self-delimiting: a header byte whose flag combination happens to
// equal an opcode value (e.g. size+perms+owner+mtime = 0x0F) can never be
// confused for one.
const (
	OpSameLevel      byte = 0x0B
	OpSummaryFollows byte = 0x0C
	OpDescend        byte = 0x0E
	OpAscend         byte = 0x0F
)

// xattrInaccessible prefixes the xattr blob carried by an entry standing in
// for an unreadable directory; the remainder of the blob is the reason.
const xattrInaccessible = "inaccessible:"
