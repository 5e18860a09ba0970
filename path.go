package treaty

import (
	"strconv"
	"strings"
)

// PathField appends an object member to a JSON Pointer, escaping per RFC 6901
// ('~' -> '~0', '/' -> '~1').
func PathField(base, name string) string {
	esc := strings.ReplaceAll(strings.ReplaceAll(name, "~", "~0"), "/", "~1")
	if base == "" || base == "/" {
		return "/" + esc
	}
	return base + "/" + esc
}

// PathIndex appends an array index to a JSON Pointer.
func PathIndex(base string, i int) string {
	if base == "" || base == "/" {
		return "/" + strconv.Itoa(i)
	}
	return base + "/" + strconv.Itoa(i)
}

// PathSegments splits a JSON Pointer into unescaped segments. The root
// pointer ("" or "/") yields no segments.
func PathSegments(ptr string) []string {
	if ptr == "" || ptr == "/" {
		return nil
	}
	parts := strings.Split(ptr, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		segs = append(segs, strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~"))
	}
	return segs
}

// JoinPath rebases a child-relative pointer onto a parent pointer. Child
// pointers produced by nested schemas are rooted at "/", so rebasing is a
// prefix concatenation.
func JoinPath(parent, child string) string {
	if child == "" || child == "/" {
		if parent == "" {
			return "/"
		}
		return parent
	}
	if parent == "" || parent == "/" {
		return child
	}
	return parent + child
}
