package engine

import (
	"strings"
)

// GuardResult lists the required paths that were absent.
type GuardResult struct {
	MissingPaths []string
}

// RequirePaths checks presence of dot-separated paths against a shallow
// document view (e.g. "metadata.encryption.enabled"). Presence, not
// non-emptiness, is what is checked at each step of the traversal.
func RequirePaths(doc map[string]interface{}, paths []string) GuardResult {
	var missing []string
	for _, p := range paths {
		if !hasPath(doc, p) {
			missing = append(missing, p)
		}
	}
	return GuardResult{MissingPaths: missing}
}

func hasPath(doc map[string]interface{}, path string) bool {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return false
		}
		next, ok := m[part]
		if !ok {
			return false
		}
		cur = next
	}
	return true
}
