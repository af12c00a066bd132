package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bc-dunia/httpdrill/internal/artifacts"
)

// ArtifactMetricsSink is the default MetricsSink: it appends each batch as
// a newline-delimited JSON artifact under the run's "telemetry" artifact
// type, reusing artifacts.Store rather than inventing a second storage
// layer for the same concern.
type ArtifactMetricsSink struct {
	store artifacts.Store
}

func NewArtifactMetricsSink(store artifacts.Store) *ArtifactMetricsSink {
	return &ArtifactMetricsSink{store: store}
}

func (s *ArtifactMetricsSink) WriteResultBatch(_ context.Context, records []ResultRecord) error {
	if len(records) == 0 {
		return nil
	}
	data, err := marshalJSONL(records)
	if err != nil {
		return fmt.Errorf("sink: marshal result batch: %w", err)
	}
	filename := fmt.Sprintf("results-%d.jsonl", time.Now().UnixNano())
	_, err = s.store.SaveArtifact(records[0].RunID, artifacts.ArtifactTypeTelemetry, filename, data)
	return err
}

func (s *ArtifactMetricsSink) WriteMetricBatch(_ context.Context, records []MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	data, err := marshalJSONL(records)
	if err != nil {
		return fmt.Errorf("sink: marshal metric batch: %w", err)
	}
	filename := fmt.Sprintf("metrics-%d.jsonl", time.Now().UnixNano())
	_, err = s.store.SaveArtifact(records[0].RunID, artifacts.ArtifactTypeTelemetry, filename, data)
	return err
}

func marshalJSONL(v any) ([]byte, error) {
	switch records := v.(type) {
	case []ResultRecord:
		var buf []byte
		for _, r := range records {
			line, err := json.Marshal(r)
			if err != nil {
				return nil, err
			}
			buf = append(buf, line...)
			buf = append(buf, '\n')
		}
		return buf, nil
	case []MetricRecord:
		var buf []byte
		for _, r := range records {
			line, err := json.Marshal(r)
			if err != nil {
				return nil, err
			}
			buf = append(buf, line...)
			buf = append(buf, '\n')
		}
		return buf, nil
	default:
		return json.Marshal(v)
	}
}
