package planner

// maxTagDepth is how many ancestor levels PropagateTags looks at
// (event -> suggestion -> idea).
const maxTagDepth = 2

// PropagateTags picks the tags stored on a new record. Explicit tags win;
// otherwise the first non-empty ancestor set, nearest first, is copied.
// The result is computed once at creation and never re-derived.
func PropagateTags(explicit []string, lineage ...[]string) []string {
	if len(explicit) > 0 {
		return copyTags(explicit)
	}
	for i, tags := range lineage {
		if i >= maxTagDepth {
			break
		}
		if len(tags) > 0 {
			return copyTags(tags)
		}
	}
	return nil
}

func copyTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
