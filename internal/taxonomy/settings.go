package taxonomy

import "github.com/trapwatch/trapwatch/internal/conf"

// ConfigFromSettings builds a Config from the taxonomy settings section.
func ConfigFromSettings(s conf.TaxonomySettings) Config {
	return Config{
		Source:        s.Source,
		File:          s.File,
		RemoteURL:     s.Remote.URL,
		RemoteTimeout: s.Remote.Timeout,
		CacheTTL:      s.CacheTTL,
	}
}
