package scheduler

import "regexp"

// refPattern matches dependency references: a $ sigil followed by a task ID.
var refPattern = regexp.MustCompile(`\$(\w+)`)

// Resolve substitutes every $id reference in raw with the referenced task's
// stored output. All references are replaced in a single pass; a reference
// whose task has no recorded result is left as-is. Under the readiness rule
// that never happens for real dependencies, so a leftover sigil points at
// either a scheduling bug or an ID the task did not declare.
//
// Resolution is pure: it never mutates the store, and resolving the same
// input against an unchanged store always yields the same output.
func Resolve(raw string, results *Results) string {
	return refPattern.ReplaceAllStringFunc(raw, func(ref string) string {
		if out, ok := results.Get(ref[1:]); ok {
			return out
		}
		return ref
	})
}

// References returns the task IDs referenced by a raw input, in order of
// appearance. Useful for diagnostics; the resolver itself does not need it.
func References(raw string) []string {
	matches := refPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}
