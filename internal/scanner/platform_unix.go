//go:build unix

package scanner

import (
	"io/fs"
	"syscall"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// populatePlatformMeta fills in the fields only available via the
// platform-specific stat structure: owning uid/gid. FSType is not set.
func populatePlatformMeta(node *scanmodel.FileNode, info fs.FileInfo) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		node.UID = stat.Uid
		node.GID = stat.Gid
	}
}
