// Package gamesync converts authoritative state changes into the delta and
// snapshot messages fanned out to a room's subscribers, and guards inbound
// sequence numbers against replay.
package gamesync

import (
	"reflect"
	"strconv"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// Diff computes the ordered change list that transforms prev into next.
// Both trees are JSON-shaped. Paths are dotted, with numeric segments for
// array indexes, rooted at the state object.
func Diff(prev, next map[string]any) []network.Change {
	var changes []network.Change
	diffMap("", prev, next, &changes)
	return changes
}

func diffMap(path string, prev, next map[string]any, out *[]network.Change) {
	for k := range prev {
		if _, ok := next[k]; !ok {
			*out = append(*out, network.Change{
				Path:      joinPath(path, k),
				Operation: network.OpDelete,
			})
		}
	}
	for k, nv := range next {
		pv, existed := prev[k]
		if !existed {
			*out = append(*out, network.Change{
				Path:      joinPath(path, k),
				Value:     nv,
				Operation: network.OpSet,
			})
			continue
		}
		diffValue(joinPath(path, k), pv, nv, out)
	}
}

func diffValue(path string, prev, next any, out *[]network.Change) {
	pm, pIsMap := prev.(map[string]any)
	nm, nIsMap := next.(map[string]any)
	if pIsMap && nIsMap {
		diffMap(path, pm, nm, out)
		return
	}

	ps, pIsSlice := prev.([]any)
	ns, nIsSlice := next.([]any)
	if pIsSlice && nIsSlice {
		diffSlice(path, ps, ns, out)
		return
	}

	if !reflect.DeepEqual(prev, next) {
		*out = append(*out, network.Change{
			Path:      path,
			Value:     next,
			Operation: network.OpSet,
		})
	}
}

// diffSlice emits element-wise sets for the shared prefix, push operations
// for appended elements, and a single splice for truncation.
func diffSlice(path string, prev, next []any, out *[]network.Change) {
	shared := len(prev)
	if len(next) < shared {
		shared = len(next)
	}
	for i := 0; i < shared; i++ {
		diffValue(path+"."+strconv.Itoa(i), prev[i], next[i], out)
	}
	for i := len(prev); i < len(next); i++ {
		*out = append(*out, network.Change{
			Path:      path,
			Value:     next[i],
			Operation: network.OpPush,
		})
	}
	if len(prev) > len(next) {
		*out = append(*out, network.Change{
			Path:        path,
			Operation:   network.OpSplice,
			Start:       len(next),
			DeleteCount: len(prev) - len(next),
		})
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
