package paths

import (
	"fmt"
	"strconv"
)

// Get walks a JSON-like value. A missing location yields (nil, false).
func Get(root any, p Path) (any, bool) {
	cur := root
	for _, seg := range p {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set stores value at p inside root and returns the updated root. Maps are
// updated in place, slices may be reallocated when they grow, and missing
// intermediate containers are created as maps.
func Set(root any, p Path, value any) (any, error) {
	if len(p) == 0 {
		return value, nil
	}
	seg, rest := p[0], p[1:]

	switch c := root.(type) {
	case nil:
		m := map[string]any{}
		child, err := Set(nil, rest, value)
		if err != nil {
			return nil, err
		}
		m[seg] = child
		return m, nil
	case map[string]any:
		child, err := Set(c[seg], rest, value)
		if err != nil {
			return nil, err
		}
		c[seg] = child
		return c, nil
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid index %q", seg)
		}
		for len(c) <= i {
			c = append(c, nil)
		}
		child, err := Set(c[i], rest, value)
		if err != nil {
			return nil, err
		}
		c[i] = child
		return c, nil
	default:
		return nil, fmt.Errorf("cannot set %q on %T", seg, root)
	}
}

// Unset removes the value at p. Map keys are deleted; slice elements are
// cleared to nil so sibling indices stay stable. It reports whether anything
// was removed.
func Unset(root any, p Path) bool {
	if len(p) == 0 {
		return false
	}
	parent, ok := Get(root, p[:len(p)-1])
	if !ok {
		return false
	}
	last := p[len(p)-1]
	switch c := parent.(type) {
	case map[string]any:
		if _, ok := c[last]; !ok {
			return false
		}
		delete(c, last)
		return true
	case []any:
		i, err := strconv.Atoi(last)
		if err != nil || i < 0 || i >= len(c) {
			return false
		}
		c[i] = nil
		return true
	}
	return false
}
