package waypoint

// Stock resolves the built-in waypoints by name, for use as a Resolve
// lookup. User-registered waypoints layer their own lookup on top.
func Stock(name string) (Waypoint, bool) {
	switch name {
	case "markdown":
		return Markdown(), true
	}
	return Waypoint{}, false
}
