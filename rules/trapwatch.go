//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// InternalErrors keeps error construction on the internal errors package so
// every error carries a component and category.
func InternalErrors(m dsl.Matcher) {
	m.Import("errors")

	m.Match(`errors.New($msg)`).
		Where(m.File().Imports("errors") && !m.File().PkgPath.Matches(`/internal/errors$`)).
		Report("use the internal errors package: errors.Newf($msg).Component(...).Category(...).Build()")
}

// ModuleLogger flags slog used directly outside the logger package.
func ModuleLogger(m dsl.Matcher) {
	m.Match(`slog.Info($*_)`, `slog.Warn($*_)`, `slog.Error($*_)`, `slog.Debug($*_)`).
		Where(!m.File().PkgPath.Matches(`/internal/logger$`)).
		Report("log through logger.Global().Module(...) instead of the slog default logger")
}

// TimeSince prefers time.Since for elapsed durations.
func TimeSince(m dsl.Matcher) {
	m.Match(`time.Now().Sub($t)`).
		Report("use time.Since($t)").
		Suggest("time.Since($t)")
}

// UTCTimestamps flags visit times formatted without normalising to UTC.
func UTCTimestamps(m dsl.Matcher) {
	m.Match(`$v.TimeStart.Format($layout)`, `$v.TimeEnd.Format($layout)`).
		Where(m["v"].Type.Is("visits.Visit") || m["v"].Type.Is("*visits.Visit")).
		Report("call .UTC() before formatting visit times")
}
