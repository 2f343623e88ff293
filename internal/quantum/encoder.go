package quantum

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// Encode renders a complete event stream as a quantum byte stream. The
// encoder requires the full stream up front: dynamic tokens must be
// allocated and written to the header before the first entry references
// them, which makes this a two-pass encoding.
func Encode(events []scanmodel.ScanEvent) []byte {
	return EncodeWithVocabulary(events, nil)
}

// EncodeWithVocabulary additionally seeds the token table with
// project-specific identifiers discovered during the scan (the semantic
// encoder's surviving symbol names). Vocabulary entries are allocated
// after the frequency-derived names, in the order given, so callers that
// pass a deterministic list get a deterministic table.
func EncodeWithVocabulary(events []scanmodel.ScanEvent, vocabulary []string) []byte {
	table := NewTokenTable()
	counts := make(map[string]int)
	for _, ev := range events {
		switch ev.Kind {
		case scanmodel.EventEnterDir, scanmodel.EventFile:
			if ev.Node.Depth > 0 {
				counts[ev.Node.Name()]++
			}
		}
	}
	table.AllocateFrequent(counts)
	for _, name := range vocabulary {
		table.Allocate(name)
	}

	var data bytes.Buffer
	var parents []scanmodel.FileNode

	parentOf := func() scanmodel.FileNode {
		if len(parents) == 0 {
			return scanmodel.FileNode{}
		}
		return parents[len(parents)-1]
	}

	for _, ev := range events {
		switch ev.Kind {
		case scanmodel.EventEnterDir:
			data.WriteByte(OpDescend)
			writeEntry(&data, table, ev.Node, parentOf(), "")
			parents = append(parents, ev.Node)

		case scanmodel.EventFile:
			data.WriteByte(OpSameLevel)
			writeEntry(&data, table, ev.Node, parentOf(), "")

		case scanmodel.EventExitDir:
			data.WriteByte(OpAscend)
			if len(parents) > 0 {
				parents = parents[:len(parents)-1]
			}

		case scanmodel.EventInaccessibleDir:
			// Depth 0 forces the full (root-relative) path to be written as
			// the name, which is what the decoder re-emits verbatim.
			node := scanmodel.FileNode{
				AbsPath:      ev.Path,
				Kind:         scanmodel.KindDir,
				Inaccessible: true,
			}
			data.WriteByte(OpSameLevel)
			writeEntry(&data, table, node, parentOf(), xattrInaccessible+ev.Reason)

		case scanmodel.EventSummary:
			data.WriteByte(OpSummaryFollows)
			stats, _ := json.Marshal(ev.Stats)
			writeUvarint(&data, uint64(len(stats)))
			data.Write(stats)
		}
	}

	var out bytes.Buffer
	out.WriteString(Magic)
	out.WriteByte(endianNetwork)
	binary.Write(&out, binary.BigEndian, crc32.ChecksumIEEE(data.Bytes()))
	out.WriteString(table.HeaderSection())
	out.WriteString("DATA:")
	out.Write(data.Bytes())
	return out.Bytes()
}

// writeEntry emits one [header-byte][delta-fields][name-or-token] record.
// Root entries (depth 0) always carry their full path as the name so the
// decoder can anchor reconstruction.
func writeEntry(w *bytes.Buffer, table *TokenTable, node, parent scanmodel.FileNode, xattr string) {
	var header byte
	name := node.Name()
	if node.Depth == 0 {
		name = node.AbsPath
	}

	switch node.Kind {
	case scanmodel.KindDir:
		header |= FlagDir
	case scanmodel.KindSymlink:
		header |= FlagSymlink
	case scanmodel.KindOther:
		header |= FlagDir | FlagSymlink
	}

	if node.Kind == scanmodel.KindFile && node.Size > 0 {
		header |= FlagSize
	}
	if node.Perm != parent.Perm {
		header |= FlagPermsDelta
	}
	if node.UID != parent.UID || node.GID != parent.GID {
		header |= FlagOwnerDelta
	}
	if node.MTime != parent.MTime {
		header |= FlagMTimeDelta
	}
	if node.Inaccessible && xattr != "" {
		header |= FlagXattr
	}

	tokenID, hasToken := uint16(0), false
	if node.Depth > 0 {
		tokenID, hasToken = table.Lookup(name)
	}
	if hasToken {
		header |= FlagTokenName
	}

	w.WriteByte(header)

	if header&FlagSize != 0 {
		writeUvarint(w, uint64(node.Size))
	}
	if header&FlagPermsDelta != 0 {
		writeUvarint(w, uint64(node.Perm^parent.Perm))
	}
	if header&FlagOwnerDelta != 0 {
		writeUvarint(w, uint64(node.UID^parent.UID))
		writeUvarint(w, uint64(node.GID^parent.GID))
	}
	if header&FlagMTimeDelta != 0 {
		writeVarint(w, node.MTime-parent.MTime)
	}
	if node.Kind == scanmodel.KindSymlink {
		writeUvarint(w, uint64(len(node.SymlinkTarget)))
		w.WriteString(node.SymlinkTarget)
	}
	if header&FlagXattr != 0 {
		writeUvarint(w, uint64(len(xattr)))
		w.WriteString(xattr)
	}

	if hasToken {
		writeUvarint(w, uint64(tokenID))
	} else {
		writeUvarint(w, uint64(len(name)))
		w.WriteString(name)
	}
}

func writeUvarint(w *bytes.Buffer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	w.Write(buf[:n])
}

func writeVarint(w *bytes.Buffer, v int64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], v)
	w.Write(buf[:n])
}
