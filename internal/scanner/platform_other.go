//go:build !unix

package scanner

import (
	"io/fs"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// populatePlatformMeta is a no-op on platforms without POSIX uid/gid stat
// fields.
func populatePlatformMeta(node *scanmodel.FileNode, info fs.FileInfo) {}
