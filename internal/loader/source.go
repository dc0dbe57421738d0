// Package loader reads raw inspection rows from a ZIP archive or the city's
// paginated JSON API and normalizes them into typed records.
package loader

import (
	"fmt"
)

// Default source settings.
const (
	DefaultArchiveEntry = "data.json"
	DefaultPageSize     = 1000
)

// Source describes where inspection rows come from.
type Source struct {
	ArchivePath  string `json:"archive_path" mapstructure:"archive_path"`
	ArchiveEntry string `json:"archive_entry" mapstructure:"archive_entry"`
	RemoteURL    string `json:"remote_url" mapstructure:"remote_url"`
	PageSize     int    `json:"page_size" mapstructure:"page_size"`
	// Remote selects the paginated API; the archive remains the fallback.
	Remote bool `json:"remote" mapstructure:"remote"`
}

// withDefaults fills unset fields.
func (s Source) withDefaults() Source {
	if s.ArchiveEntry == "" {
		s.ArchiveEntry = DefaultArchiveEntry
	}
	if s.PageSize <= 0 {
		s.PageSize = DefaultPageSize
	}
	return s
}

// Key returns a stable identity string for the descriptor, used as part of
// pipeline cache keys.
func (s Source) Key() string {
	s = s.withDefaults()
	if s.Remote && s.RemoteURL != "" {
		return fmt.Sprintf("remote|%s|%d|%s|%s", s.RemoteURL, s.PageSize, s.ArchivePath, s.ArchiveEntry)
	}
	return fmt.Sprintf("archive|%s|%s", s.ArchivePath, s.ArchiveEntry)
}
