package digest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/smarttree/smarttree/internal/scanmodel"
	"github.com/smarttree/smarttree/internal/stree"
)

// Summary artifact layout (all integers big-endian):
//
//	magic      [6]byte  "STSUMM"
//	version    uint16
//	createdAt  int64    epoch seconds
//	rootHash   [32]byte
//	bodyLen    uint32
//	body       ...      statistics + child summaries
//	crc32      uint32   IEEE, over body only
//	trailing   ...      unknown sections, preserved verbatim
var summaryMagic = [6]byte{'S', 'T', 'S', 'U', 'M', 'M'}

const summaryVersion uint16 = 1

// ChildSummary is the per-child record of a directory summary artifact.
type ChildSummary struct {
	Name      string
	IsDir     bool
	FileCount uint32
	DirCount  uint32
	Bytes     uint64
}

// Summary is the decoded form of the persisted per-directory artifact.
type Summary struct {
	CreatedAt int64
	RootHash  [32]byte

	FileCount  uint32
	DirCount   uint32
	TotalBytes uint64

	Children []ChildSummary

	// Trailing holds unknown sections that followed the CRC on read; they
	// are re-emitted verbatim so a newer writer's extensions survive a
	// round-trip through an older reader.
	Trailing []byte
}

// NewSummary builds a Summary from scan statistics and the full scan
// digest (its raw SHA-256 bytes).
func NewSummary(createdAt int64, rootHash [32]byte, stats scanmodel.Statistics, children []ChildSummary) *Summary {
	return &Summary{
		CreatedAt:  createdAt,
		RootHash:   rootHash,
		FileCount:  uint32(stats.FileCount),
		DirCount:   uint32(stats.DirCount),
		TotalBytes: uint64(stats.TotalBytes),
		Children:   children,
	}
}

// Marshal encodes the artifact, computing the CRC over the body section.
func (s *Summary) Marshal() []byte {
	var body bytes.Buffer
	writeU32 := func(v uint32) { binary.Write(&body, binary.BigEndian, v) }

	writeU32(s.FileCount)
	writeU32(s.DirCount)
	binary.Write(&body, binary.BigEndian, s.TotalBytes)

	writeU32(uint32(len(s.Children)))
	for _, c := range s.Children {
		writeU32(uint32(len(c.Name)))
		body.WriteString(c.Name)
		if c.IsDir {
			body.WriteByte(1)
		} else {
			body.WriteByte(0)
		}
		writeU32(c.FileCount)
		writeU32(c.DirCount)
		binary.Write(&body, binary.BigEndian, c.Bytes)
	}

	var out bytes.Buffer
	out.Write(summaryMagic[:])
	binary.Write(&out, binary.BigEndian, summaryVersion)
	binary.Write(&out, binary.BigEndian, s.CreatedAt)
	out.Write(s.RootHash[:])
	binary.Write(&out, binary.BigEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	binary.Write(&out, binary.BigEndian, crc32.ChecksumIEEE(body.Bytes()))
	out.Write(s.Trailing)
	return out.Bytes()
}

// UnmarshalSummary decodes an artifact, verifying magic and CRC. Unknown
// bytes after the CRC are captured in Trailing.
func UnmarshalSummary(data []byte) (*Summary, error) {
	r := bytes.NewReader(data)

	var magic [6]byte
	if _, err := r.Read(magic[:]); err != nil || magic != summaryMagic {
		return nil, stree.New(stree.CodeParseError, "summary artifact: bad magic", err)
	}
	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: truncated header", err)
	}
	if version > summaryVersion {
		return nil, stree.New(stree.CodeParseError,
			fmt.Sprintf("summary artifact: unsupported version %d", version), nil)
	}

	s := &Summary{}
	if err := binary.Read(r, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: truncated header", err)
	}
	if _, err := r.Read(s.RootHash[:]); err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: truncated root hash", err)
	}

	var bodyLen uint32
	if err := binary.Read(r, binary.BigEndian, &bodyLen); err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: truncated body length", err)
	}
	body := make([]byte, bodyLen)
	if _, err := r.Read(body); err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: truncated body", err)
	}

	var sum uint32
	if err := binary.Read(r, binary.BigEndian, &sum); err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: missing checksum", err)
	}
	if sum != crc32.ChecksumIEEE(body) {
		return nil, stree.New(stree.CodeParseError, "summary artifact: checksum mismatch", nil)
	}

	br := bytes.NewReader(body)
	readU32 := func() (uint32, error) {
		var v uint32
		err := binary.Read(br, binary.BigEndian, &v)
		return v, err
	}

	var err error
	if s.FileCount, err = readU32(); err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: truncated statistics", err)
	}
	if s.DirCount, err = readU32(); err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: truncated statistics", err)
	}
	if err := binary.Read(br, binary.BigEndian, &s.TotalBytes); err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: truncated statistics", err)
	}

	childCount, err := readU32()
	if err != nil {
		return nil, stree.New(stree.CodeParseError, "summary artifact: truncated child count", err)
	}
	for i := uint32(0); i < childCount; i++ {
		var c ChildSummary
		nameLen, err := readU32()
		if err != nil {
			return nil, stree.New(stree.CodeParseError, "summary artifact: truncated child", err)
		}
		name := make([]byte, nameLen)
		if _, err := br.Read(name); err != nil {
			return nil, stree.New(stree.CodeParseError, "summary artifact: truncated child name", err)
		}
		c.Name = string(name)
		flag, err := br.ReadByte()
		if err != nil {
			return nil, stree.New(stree.CodeParseError, "summary artifact: truncated child", err)
		}
		c.IsDir = flag == 1
		if c.FileCount, err = readU32(); err != nil {
			return nil, stree.New(stree.CodeParseError, "summary artifact: truncated child", err)
		}
		if c.DirCount, err = readU32(); err != nil {
			return nil, stree.New(stree.CodeParseError, "summary artifact: truncated child", err)
		}
		if err := binary.Read(br, binary.BigEndian, &c.Bytes); err != nil {
			return nil, stree.New(stree.CodeParseError, "summary artifact: truncated child", err)
		}
		s.Children = append(s.Children, c)
	}

	if rest := r.Len(); rest > 0 {
		s.Trailing = make([]byte, rest)
		r.Read(s.Trailing)
	}
	return s, nil
}
