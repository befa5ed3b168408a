package internal

import "weak"

// WeakRelease builds a release hook calling fn on owner without keeping
// owner reachable, so that an owner holding connections and connections
// holding the hook don't form a cycle. Once owner is collected the hook does
// nothing.
func WeakRelease[T any](owner *T, fn func(owner *T, c *Connection)) ReleaseFunc {
	p := weak.Make(owner)
	return func(c *Connection) {
		if o := p.Value(); o != nil {
			fn(o, c)
		}
	}
}
