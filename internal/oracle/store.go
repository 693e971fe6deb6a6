package oracle

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/virellia/driftline/internal/models"
)

// SampleStore persists on-chain samples to a local CSV file. The file is
// append-only: history is read once at startup and new samples are appended
// as the oracle refreshes.
type SampleStore struct {
	path string
}

// NewSampleStore creates a store backed by the given file path. Parent
// directories are created on demand.
func NewSampleStore(path string) *SampleStore {
	return &SampleStore{path: path}
}

// Load reads all persisted samples, sorted by ascending timestamp. A missing
// file is not an error: the oracle simply starts with an empty cache.
func (s *SampleStore) Load() ([]models.OnChainSample, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open sample file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read sample file: %w", err)
	}

	samples := make([]models.OnChainSample, 0, len(records))
	for i, rec := range records {
		if i == 0 && rec[0] == "timestamp" {
			continue // header
		}
		if len(rec) != 3 {
			return nil, fmt.Errorf("malformed sample record at line %d", i+1)
		}
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("bad timestamp at line %d: %w", i+1, err)
		}
		tvl, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad tvl at line %d: %w", i+1, err)
		}
		supply, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("bad stable supply at line %d: %w", i+1, err)
		}
		samples = append(samples, models.OnChainSample{Timestamp: ts, TVL: tvl, StableSupply: supply})
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	return samples, nil
}

// Append writes one sample to the end of the file, creating it with a header
// when absent.
func (s *SampleStore) Append(sample models.OnChainSample) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create sample directory: %w", err)
	}

	_, statErr := os.Stat(s.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open sample file for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write([]string{"timestamp", "tvl", "stable_supply"}); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	record := []string{
		sample.Timestamp.UTC().Format(time.RFC3339),
		strconv.FormatFloat(sample.TVL, 'f', -1, 64),
		strconv.FormatFloat(sample.StableSupply, 'f', -1, 64),
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}
	w.Flush()

	return w.Error()
}
