// Package export writes cached OHLC series to Parquet files for offline
// analysis of what the dashboard was actually showing.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradedesk/internal/domain"
	"tradedesk/internal/marketdata"
)

// BarRecord is the Parquet schema for an exported bar.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timeframe string  `parquet:"timeframe"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Provider  string  `parquet:"provider"`
}

// SeriesStore reads and writes per-series Parquet files under a base
// directory.
type SeriesStore struct {
	Dir string
}

// NewSeriesStore creates a SeriesStore rooted at the given directory.
func NewSeriesStore(dir string) *SeriesStore {
	return &SeriesStore{Dir: dir}
}

// WriteSeries persists one cached series, merging with any previous export of
// the same (symbol, timeframe) by timestamp; incoming bars win.
func (s *SeriesStore) WriteSeries(key marketdata.Key, entry *marketdata.Entry) error {
	if entry == nil || len(entry.Bars) == 0 {
		return nil
	}

	incoming := make([]BarRecord, len(entry.Bars))
	for i, b := range entry.Bars {
		incoming[i] = BarRecord{
			Symbol:    string(key.Symbol),
			Timeframe: string(key.Timeframe),
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Provider:  entry.Provider,
		}
	}

	path := s.seriesPath(key)
	existing, _ := readParquetFile[BarRecord](path)
	merged := mergeBarRecords(existing, incoming)

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing series %s: %w", key, err)
	}
	return nil
}

// ReadSeries loads a previously exported series, ascending by time. A missing
// file yields an empty slice and no error.
func (s *SeriesStore) ReadSeries(key marketdata.Key) ([]domain.Bar, error) {
	records, err := readParquetFile[BarRecord](s.seriesPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	bars := make([]domain.Bar, len(records))
	for i, r := range records {
		bars[i] = domain.Bar{
			Time:  time.UnixMilli(r.Timestamp),
			Open:  r.Open,
			High:  r.High,
			Low:   r.Low,
			Close: r.Close,
		}
	}
	return bars, nil
}

// seriesPath returns the filesystem path for a series Parquet file.
// Layout: <dir>/<SYMBOL>/<timeframe>.parquet
func (s *SeriesStore) seriesPath(key marketdata.Key) string {
	return filepath.Join(s.Dir, strings.ToUpper(string(key.Symbol)), string(key.Timeframe)+".parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates records by timestamp, preferring incoming over
// existing, and returns them ascending by time.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	byTS := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		byTS[r.Timestamp] = r
	}
	for _, r := range incoming {
		byTS[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(byTS))
	for _, r := range byTS {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
