package waypoint

// Spec is one node of a possibly-nested waypoint declaration: an inline
// waypoint, a by-name reference resolved through a Lookup, or an ordered
// group expanded in place. Exactly one of the three is set.
type Spec struct {
	Inline   *Waypoint
	Name     string
	Children []Spec
}

// Use declares an inline waypoint.
func Use(w Waypoint) Spec {
	return Spec{Inline: &w}
}

// Ref declares a waypoint resolved by name at build-configuration time.
func Ref(name string) Spec {
	return Spec{Name: name}
}

// Group declares an ordered sub-list expanded in place.
func Group(specs ...Spec) Spec {
	return Spec{Children: specs}
}

// Lookup resolves a waypoint reference by name.
type Lookup func(name string) (Waypoint, bool)

// Resolution is the variant result of resolving one spec node: either a
// resolved waypoint or the name that could not be found.
type Resolution struct {
	Waypoint Waypoint
	Missing  string
}

// Resolved reports whether this entry carries a usable waypoint.
func (r Resolution) Resolved() bool {
	return r.Missing == ""
}

// Resolve expands nested specs depth-first into a flat ordered list. Missing
// references are collected, never aborted on, so callers can report every
// unresolvable name at once before refusing to build.
func Resolve(specs []Spec, lookup Lookup) []Resolution {
	var out []Resolution
	for _, spec := range specs {
		out = resolveInto(out, spec, lookup)
	}
	return out
}

func resolveInto(out []Resolution, spec Spec, lookup Lookup) []Resolution {
	switch {
	case spec.Inline != nil:
		out = append(out, Resolution{Waypoint: *spec.Inline})
	case spec.Name != "":
		if lookup != nil {
			if w, ok := lookup(spec.Name); ok {
				return append(out, Resolution{Waypoint: w})
			}
		}
		out = append(out, Resolution{Missing: spec.Name})
	default:
		for _, child := range spec.Children {
			out = resolveInto(out, child, lookup)
		}
	}
	return out
}

// Missing returns the names of all unresolved references in order.
func Missing(resolutions []Resolution) []string {
	var names []string
	for _, r := range resolutions {
		if !r.Resolved() {
			names = append(names, r.Missing)
		}
	}
	return names
}

// Waypoints extracts the resolved waypoints in order. It must only be called
// after checking Missing.
func Waypoints(resolutions []Resolution) []Waypoint {
	out := make([]Waypoint, 0, len(resolutions))
	for _, r := range resolutions {
		if r.Resolved() {
			out = append(out, r.Waypoint)
		}
	}
	return out
}
