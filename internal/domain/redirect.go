package domain

// RedirectEdge is an existing entry that sends From's requests to To during Interval.
type RedirectEdge struct {
	From     int64
	To       int64
	Interval Interval
}

func (e Entry) RedirectEdge() (RedirectEdge, bool) {
	if e.ToUserID == nil {
		return RedirectEdge{}, false
	}
	return RedirectEdge{From: e.UserID, To: *e.ToUserID, Interval: e.Interval()}, true
}

// RedirectGuard rejects delegations that route requests back to the owner.
// MaxDepth bounds how many existing edges are followed from the delegate;
// depth 1 only catches the mutual A->B, B->A case.
type RedirectGuard struct {
	MaxDepth int
}

func DefaultRedirectGuard() RedirectGuard {
	return RedirectGuard{MaxDepth: 1}
}

func (g RedirectGuard) depth() int {
	if g.MaxDepth < 1 {
		return 1
	}
	return g.MaxDepth
}

// CreatesCycle reports whether adding owner->delegate during window closes a loop
// with edges that overlap window.
func (g RedirectGuard) CreatesCycle(owner, delegate int64, window Interval, edges []RedirectEdge) bool {
	if owner == delegate {
		return true
	}

	adjacent := make(map[int64][]int64)
	for _, e := range edges {
		if !e.Interval.Overlaps(window) {
			continue
		}
		adjacent[e.From] = append(adjacent[e.From], e.To)
	}

	visited := map[int64]struct{}{delegate: {}}
	frontier := []int64{delegate}
	for hop := 0; hop < g.depth() && len(frontier) > 0; hop++ {
		var next []int64
		for _, from := range frontier {
			for _, to := range adjacent[from] {
				if to == owner {
					return true
				}
				if _, seen := visited[to]; seen {
					continue
				}
				visited[to] = struct{}{}
				next = append(next, to)
			}
		}
		frontier = next
	}
	return false
}
