package hierarchy

import (
	"strconv"
	"strings"
)

// Tree paths are slash-joined ancestor ids ending with the user's own id,
// e.g. "1/4/17". The root's path is its own id. Subtree containment is a
// prefix scan: tree_path = self OR tree_path LIKE self || '/%'.

// ChildPath returns the tree path for a child of parentPath with the given id.
func ChildPath(parentPath string, id int64) string {
	if parentPath == "" {
		return strconv.FormatInt(id, 10)
	}
	return parentPath + "/" + strconv.FormatInt(id, 10)
}

// PathLevel is the number of separators: root is level 0.
func PathLevel(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, "/")
}

// IsDescendantPath reports whether path lies in the subtree rooted at
// ancestorPath (inclusive).
func IsDescendantPath(ancestorPath, path string) bool {
	if ancestorPath == "" || path == "" {
		return false
	}
	return path == ancestorPath || strings.HasPrefix(path, ancestorPath+"/")
}

// EscapeLike escapes LIKE wildcards in a path so it can be used as a literal
// prefix with ESCAPE '\'.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// ValidPath reports whether a stored tree path looks sane: non-empty,
// slash-joined decimal ids. Paths written by this service always are; the
// check guards against hand-edited rows.
func ValidPath(path string) bool {
	if path == "" {
		return false
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			return false
		}
		if _, err := strconv.ParseInt(part, 10, 64); err != nil {
			return false
		}
	}
	return true
}
