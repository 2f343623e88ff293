package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/smarttree/smarttree/internal/scanmodel"
)

// markerPriority is the ordered marker-file priority table: package
// manifests, build files, then VCS markers. Earlier entries win when a
// root has more than one marker.
var markerPriority = []struct {
	file string
	kind scanmodel.ProjectKind
}{
	{"go.mod", scanmodel.ProjectGo},
	{"package.json", scanmodel.ProjectNode},
	{"Cargo.toml", scanmodel.ProjectRust},
	{"pyproject.toml", scanmodel.ProjectPython},
	{"setup.py", scanmodel.ProjectPython},
	{"pom.xml", scanmodel.ProjectJava},
	{"build.gradle", scanmodel.ProjectJava},
	{"Gemfile", scanmodel.ProjectRuby},
	{".git", scanmodel.ProjectGit},
}

// DetectProject inspects root's immediate children against markerPriority
// and extracts a short description from the first matching manifest.
func DetectProject(root string) scanmodel.ProjectContext {
	for _, m := range markerPriority {
		path := filepath.Join(root, m.file)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		return scanmodel.ProjectContext{
			Kind:        m.kind,
			Description: describeManifest(path, info.IsDir()),
			MarkerFile:  m.file,
		}
	}
	return scanmodel.ProjectContext{Kind: scanmodel.ProjectUnknown}
}

// describeManifest extracts a short, single-line description from the
// matched manifest file. For directory markers (.git) there is nothing to
// read, so an empty description is returned. Reads are best-effort and
// always bounded to the first matching line.
func describeManifest(path string, isDir bool) string {
	if isDir {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	base := filepath.Base(path)
	scan := bufio.NewScanner(f)
	switch base {
	case "go.mod":
		for scan.Scan() {
			line := strings.TrimSpace(scan.Text())
			if strings.HasPrefix(line, "module ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "module"))
			}
		}
	case "package.json":
		for scan.Scan() {
			line := scan.Text()
			if i := strings.Index(line, `"name"`); i >= 0 {
				return extractJSONValue(line[i:])
			}
		}
	case "Cargo.toml":
		for scan.Scan() {
			line := strings.TrimSpace(scan.Text())
			if strings.HasPrefix(line, "name") && strings.Contains(line, "=") {
				return extractTOMLValue(line)
			}
		}
	case "pyproject.toml":
		for scan.Scan() {
			line := strings.TrimSpace(scan.Text())
			if strings.HasPrefix(line, "name") && strings.Contains(line, "=") {
				return extractTOMLValue(line)
			}
		}
	}
	return ""
}

func extractJSONValue(line string) string {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	v := strings.TrimSpace(parts[1])
	if rest, ok := strings.CutPrefix(v, `"`); ok {
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			return rest[:end]
		}
	}
	v = strings.Trim(v, ` ,"`)
	return v
}

func extractTOMLValue(line string) string {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return ""
	}
	v := strings.TrimSpace(parts[1])
	v = strings.Trim(v, ` "`)
	return v
}
