package access

import (
	"context"

	"hrmportal/internal/domain/session"
)

type Watcher interface {
	Watch(ctx context.Context) <-chan session.Session
}

type Change struct {
	Path     string
	Decision Decision
	Location string
	Session  session.Session
}

// Monitor re-runs the guard for path on every session mutation and emits only
// when the decision changes. The first evaluation is always emitted. The
// returned channel closes when ctx ends.
func (p Policy) Monitor(ctx context.Context, w Watcher, target string) <-chan Change {
	out := make(chan Change, 1)
	updates := w.Watch(ctx)

	go func() {
		defer close(out)
		first := true
		var last Decision
		for sess := range updates {
			d := p.Decide(target, sess)
			if !first && d == last {
				continue
			}
			first = false
			last = d
			change := Change{Path: target, Decision: d, Location: p.Location(d), Session: sess}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
