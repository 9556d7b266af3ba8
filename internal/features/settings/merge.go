package settings

import "strings"

// MergeSection folds a partial patch into a canonical section document and
// returns the result as a new map. Neither input is mutated.
//
// Nested maps merge recursively: keys only in canonical are preserved, keys in
// the patch overwrite canonical's same-named key at that path. Lists are
// replaced wholesale, never merged element-wise. Scalars overwrite. A patch
// key holding a map where canonical has a non-map (or vice versa) falls back
// to plain overwrite.
func MergeSection(canonical, patch SectionData) SectionData {
	result := cloneSection(canonical)
	for key, value := range patch {
		existing, ok := result[key]
		if !ok {
			result[key] = cloneValue(value)
			continue
		}
		patchMap, patchIsMap := asSectionData(value)
		existingMap, existingIsMap := asSectionData(existing)
		if patchIsMap && existingIsMap {
			result[key] = MergeSection(existingMap, patchMap)
			continue
		}
		result[key] = cloneValue(value)
	}
	return result
}

// asSectionData reports whether a value is a section document. SectionData is
// an alias of map[string]any, so one assertion covers both spellings.
func asSectionData(v any) (SectionData, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func cloneSection(data SectionData) SectionData {
	out := make(SectionData, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return cloneSection(tv)
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// lookupPath resolves a dot-separated field path inside a section document.
func lookupPath(data SectionData, path string) (any, bool) {
	current := any(data)
	for {
		idx := strings.IndexByte(path, '.')
		var head string
		if idx < 0 {
			head = path
		} else {
			head = path[:idx]
		}
		m, ok := asSectionData(current)
		if !ok {
			return nil, false
		}
		next, ok := m[head]
		if !ok {
			return nil, false
		}
		if idx < 0 {
			return next, true
		}
		current = next
		path = path[idx+1:]
	}
}

// setPath writes a value at a dot-separated field path, creating nothing: a
// missing or non-map intermediate leaves the document unchanged.
func setPath(data SectionData, path string, value any) {
	idx := strings.IndexByte(path, '.')
	if idx < 0 {
		data[path] = value
		return
	}
	child, ok := asSectionData(data[path[:idx]])
	if !ok {
		return
	}
	setPath(child, path[idx+1:], value)
}

// removePath deletes a dot-separated field path in place, dropping empty
// intermediate maps is deliberately not done: siblings stay untouched.
func removePath(data SectionData, path string) {
	idx := strings.IndexByte(path, '.')
	if idx < 0 {
		delete(data, path)
		return
	}
	child, ok := asSectionData(data[path[:idx]])
	if !ok {
		return
	}
	removePath(child, path[idx+1:])
}
