package storage

import (
	"github.com/spf13/afero"

	"pingmonitor/internal/models"
)

// HostStorage persists the monitored host list.
type HostStorage struct {
	file *jsonFile
}

// NewHostStorage creates host storage at path. A nil fs uses the OS filesystem.
func NewHostStorage(fs afero.Fs, path string) (*HostStorage, error) {
	f, err := newJSONFile(fs, path)
	if err != nil {
		return nil, err
	}
	return &HostStorage{file: f}, nil
}

// Load returns the stored entries, or nil when nothing has been saved yet.
func (s *HostStorage) Load() ([]models.HostEntry, error) {
	var entries []models.HostEntry
	if _, err := s.file.load(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Save replaces the stored entries.
func (s *HostStorage) Save(entries []models.HostEntry) error {
	if entries == nil {
		entries = []models.HostEntry{}
	}
	return s.file.persist(entries)
}

// HistoryStorage persists the on-demand recent-host list.
type HistoryStorage struct {
	file *jsonFile
}

// NewHistoryStorage creates history storage at path. A nil fs uses the OS filesystem.
func NewHistoryStorage(fs afero.Fs, path string) (*HistoryStorage, error) {
	f, err := newJSONFile(fs, path)
	if err != nil {
		return nil, err
	}
	return &HistoryStorage{file: f}, nil
}

// Load returns the stored hosts, most recent first.
func (s *HistoryStorage) Load() ([]string, error) {
	var hosts []string
	if _, err := s.file.load(&hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

// Save replaces the stored hosts.
func (s *HistoryStorage) Save(hosts []string) error {
	if hosts == nil {
		hosts = []string{}
	}
	return s.file.persist(hosts)
}
