package sink

import (
	"encoding/json"
	"fmt"

	"github.com/bc-dunia/httpdrill/internal/artifacts"
	"github.com/bc-dunia/httpdrill/internal/config"
)

const configSnapshotFilename = "entries.json"

// ArtifactConfigStore implements config.ConfigStore on top of
// artifacts.Store, persisting the whole entry set as one JSON artifact
// under a fixed pseudo-run-ID bucket ("_config") since config entries are
// process-wide rather than per-run.
type ArtifactConfigStore struct {
	store artifacts.Store
}

func NewArtifactConfigStore(store artifacts.Store) *ArtifactConfigStore {
	return &ArtifactConfigStore{store: store}
}

const configBucket = "_config"

func (s *ArtifactConfigStore) LoadAll() ([]config.Entry, error) {
	data, err := s.store.GetArtifact(configBucket, artifacts.ArtifactTypeConfig, configSnapshotFilename)
	if err != nil {
		return nil, nil // no snapshot yet: Manager falls back to DefaultEntries
	}
	var entries []config.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("sink: decode config snapshot: %w", err)
	}
	return entries, nil
}

func (s *ArtifactConfigStore) Save(e config.Entry) error {
	existing, _ := s.LoadAll()
	merged := mergeEntry(existing, e)
	return s.SaveBatch(merged)
}

func (s *ArtifactConfigStore) SaveBatch(entries []config.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("sink: encode config snapshot: %w", err)
	}
	_, err = s.store.SaveArtifact(configBucket, artifacts.ArtifactTypeConfig, configSnapshotFilename, data)
	return err
}

func mergeEntry(existing []config.Entry, updated config.Entry) []config.Entry {
	for i, e := range existing {
		if e.Key == updated.Key {
			existing[i] = updated
			return existing
		}
	}
	return append(existing, updated)
}
