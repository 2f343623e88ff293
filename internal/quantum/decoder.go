package quantum

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"path"
	"strconv"
	"strings"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// Decode reconstructs the event stream a quantum byte stream was encoded
// from, verifying the header CRC first. The reconstructed stream feeds any
// text encoder, which is how quantum output is re-projected into Classic,
// Hex, or JSON without touching the filesystem again.
func Decode(stream []byte) ([]scanmodel.ScanEvent, error) {
	rest, ok := bytes.CutPrefix(stream, []byte(Magic))
	if !ok {
		return nil, newCorrupt("missing QUANTUM_NATIVE_V1 magic")
	}
	if len(rest) < 5 {
		return nil, newCorrupt("truncated header")
	}
	// Endianness byte: varint framing is byte-order free, so only the
	// network marker is accepted.
	if rest[0] != endianNetwork {
		return nil, newCorrupt("unsupported endianness marker")
	}
	wantCRC := binary.BigEndian.Uint32(rest[1:5])
	rest = rest[5:]

	table := NewTokenTable()
	for bytes.HasPrefix(rest, []byte("TOKENS: ")) {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			return nil, newCorrupt("unterminated token-table line")
		}
		line := string(rest[len("TOKENS: "):nl])
		rest = rest[nl+1:]

		idStr, name, found := strings.Cut(line, "=")
		if !found {
			return nil, newCorrupt("malformed token-table line")
		}
		id, err := strconv.ParseUint(idStr, 16, 16)
		if err != nil {
			return nil, newCorrupt("malformed token id")
		}
		table.addFromHeader(uint16(id), name)
	}

	data, ok := bytes.CutPrefix(rest, []byte("DATA:"))
	if !ok {
		return nil, newCorrupt("missing DATA section")
	}
	if crc32.ChecksumIEEE(data) != wantCRC {
		return nil, newCorrupt("checksum mismatch")
	}

	return decodeData(data, table)
}

type decodeState struct {
	r     *bytes.Reader
	table *TokenTable
}

func decodeData(data []byte, table *TokenTable) ([]scanmodel.ScanEvent, error) {
	st := &decodeState{r: bytes.NewReader(data), table: table}

	var events []scanmodel.ScanEvent
	var stack []scanmodel.FileNode // EnterDir nodes, root at index 0
	var relStack []string          // root-relative dir paths, "" for root

	parentOf := func() scanmodel.FileNode {
		if len(stack) == 0 {
			return scanmodel.FileNode{}
		}
		return stack[len(stack)-1]
	}

	for st.r.Len() > 0 {
		op, _ := st.r.ReadByte()

		switch op {
		case OpAscend:
			if len(stack) == 0 {
				return nil, newCorrupt("unbalanced ascend opcode")
			}
			rel := relStack[len(relStack)-1]
			if rel == "" {
				rel = "."
			}
			events = append(events, scanmodel.ScanEvent{Kind: scanmodel.EventExitDir, Path: rel})
			stack = stack[:len(stack)-1]
			relStack = relStack[:len(relStack)-1]
			continue

		case OpSummaryFollows:
			n, err := st.uvarint()
			if err != nil {
				return nil, err
			}
			blob := make([]byte, n)
			if _, err := st.r.Read(blob); err != nil {
				return nil, newCorrupt("truncated summary block")
			}
			var stats scanmodel.Statistics
			if err := json.Unmarshal(blob, &stats); err != nil {
				return nil, newCorrupt("malformed summary block")
			}
			events = append(events, scanmodel.ScanEvent{Kind: scanmodel.EventSummary, Stats: stats})
			continue

		case OpDescend, OpSameLevel:
			// entry record follows
		default:
			return nil, newCorrupt("unknown traversal opcode")
		}

		header, err := st.r.ReadByte()
		if err != nil {
			return nil, newCorrupt("opcode missing entry record")
		}
		node, xattr, err := st.readEntry(header, parentOf())
		if err != nil {
			return nil, err
		}

		if reason, ok := strings.CutPrefix(xattr, xattrInaccessible); ok {
			events = append(events, scanmodel.ScanEvent{
				Kind:   scanmodel.EventInaccessibleDir,
				Path:   node.AbsPath,
				Reason: reason,
			})
			continue
		}

		if len(stack) == 0 {
			// Root anchor: name carried the full path.
			node.Depth = 0
		} else {
			node.Depth = len(stack)
			node.AbsPath = path.Join(parentOf().AbsPath, node.AbsPath)
		}

		if op == OpDescend {
			events = append(events, scanmodel.ScanEvent{Kind: scanmodel.EventEnterDir, Node: node})
			rel := ""
			if len(relStack) > 0 {
				rel = path.Join(relStack[len(relStack)-1], node.Name())
			}
			stack = append(stack, node)
			relStack = append(relStack, rel)
		} else {
			events = append(events, scanmodel.ScanEvent{Kind: scanmodel.EventFile, Node: node})
		}
	}

	return events, nil
}

// readEntry decodes the delta fields and name of one entry, the header byte
// having already been consumed. Unknown header bits are reserved and
// ignored.
func (st *decodeState) readEntry(header byte, parent scanmodel.FileNode) (scanmodel.FileNode, string, error) {
	node := scanmodel.FileNode{
		Perm:  parent.Perm,
		UID:   parent.UID,
		GID:   parent.GID,
		MTime: parent.MTime,
	}

	switch {
	case header&FlagDir != 0 && header&FlagSymlink != 0:
		node.Kind = scanmodel.KindOther
	case header&FlagDir != 0:
		node.Kind = scanmodel.KindDir
	case header&FlagSymlink != 0:
		node.Kind = scanmodel.KindSymlink
	default:
		node.Kind = scanmodel.KindFile
	}

	if header&FlagSize != 0 {
		v, err := st.uvarint()
		if err != nil {
			return node, "", err
		}
		node.Size = int64(v)
	}
	if header&FlagPermsDelta != 0 {
		v, err := st.uvarint()
		if err != nil {
			return node, "", err
		}
		node.Perm = parent.Perm ^ uint32(v)
	}
	if header&FlagOwnerDelta != 0 {
		u, err := st.uvarint()
		if err != nil {
			return node, "", err
		}
		g, err := st.uvarint()
		if err != nil {
			return node, "", err
		}
		node.UID = parent.UID ^ uint32(u)
		node.GID = parent.GID ^ uint32(g)
	}
	if header&FlagMTimeDelta != 0 {
		d, err := binary.ReadVarint(st.r)
		if err != nil {
			return node, "", newCorrupt("truncated mtime delta")
		}
		node.MTime = parent.MTime + d
	}
	if node.Kind == scanmodel.KindSymlink {
		target, err := st.lengthPrefixed()
		if err != nil {
			return node, "", err
		}
		node.SymlinkTarget = target
	}

	var xattr string
	if header&FlagXattr != 0 {
		blob, err := st.lengthPrefixed()
		if err != nil {
			return node, "", err
		}
		xattr = blob
		if strings.HasPrefix(blob, xattrInaccessible) {
			node.Inaccessible = true
		}
	}

	if header&FlagTokenName != 0 {
		id, err := st.uvarint()
		if err != nil {
			return node, "", err
		}
		name, ok := st.table.Resolve(uint16(id))
		if !ok {
			return node, "", newCorrupt("entry references unknown token")
		}
		node.AbsPath = name
	} else {
		name, err := st.lengthPrefixed()
		if err != nil {
			return node, "", err
		}
		node.AbsPath = name
	}

	return node, xattr, nil
}

func (st *decodeState) uvarint() (uint64, error) {
	v, err := binary.ReadUvarint(st.r)
	if err != nil {
		return 0, newCorrupt("truncated varint")
	}
	return v, nil
}

func (st *decodeState) lengthPrefixed() (string, error) {
	n, err := st.uvarint()
	if err != nil {
		return "", err
	}
	if n > uint64(st.r.Len()) {
		return "", newCorrupt("length prefix exceeds stream")
	}
	buf := make([]byte, n)
	st.r.Read(buf)
	return string(buf), nil
}
