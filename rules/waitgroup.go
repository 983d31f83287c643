//go:build ruleguard

// Package gorules holds ruleguard checks run by golangci-lint over trapwatch.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags goroutines tracked with Add/Done where wg.Go does the
// same bookkeeping.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... })").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`$wg.Add(1)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("$wg.Add(1) usually precedes a goroutine; use $wg.Go")
}
