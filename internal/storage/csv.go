package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/models"
)

// CSVHistoryStore persists impression records to a delimited file,
// one row per record. Malformed rows are skipped on load; a missing
// file yields an empty history.
type CSVHistoryStore struct {
	path string
	log  *zap.Logger
}

func NewCSVHistoryStore(path string, log *zap.Logger) *CSVHistoryStore {
	return &CSVHistoryStore{path: path, log: log}
}

func (s *CSVHistoryStore) Load(ctx context.Context) ([]models.ImpressionRecord, error) {
	rows, err := readRows(s.path)
	if err != nil {
		return nil, err
	}
	var records []models.ImpressionRecord
	skipped := 0
	for _, row := range rows {
		rec, err := models.UnmarshalImpressionRecord(row)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	// The header row always parses as malformed, so one skip is
	// expected on a file this store wrote.
	if skipped > 1 {
		s.log.Warn("skipped malformed impression rows",
			zap.String("path", s.path), zap.Int("skipped", skipped-1))
	}
	return records, nil
}

func (s *CSVHistoryStore) Save(ctx context.Context, records []models.ImpressionRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, models.ImpressionRecordHeader)
	for _, rec := range records {
		rows = append(rows, rec.MarshalRecord())
	}
	return writeRows(s.path, rows)
}

// CSVCampaignLog appends finalized campaigns to a delimited file.
type CSVCampaignLog struct {
	path string
	log  *zap.Logger
}

func NewCSVCampaignLog(path string, log *zap.Logger) *CSVCampaignLog {
	return &CSVCampaignLog{path: path, log: log}
}

func (l *CSVCampaignLog) Load(ctx context.Context) ([]models.Campaign, error) {
	rows, err := readRows(l.path)
	if err != nil {
		return nil, err
	}
	var campaigns []models.Campaign
	skipped := 0
	for _, row := range rows {
		c, err := models.UnmarshalCampaignRecord(row)
		if err != nil {
			skipped++
			continue
		}
		campaigns = append(campaigns, *c)
	}
	if skipped > 1 {
		l.log.Warn("skipped malformed campaign rows",
			zap.String("path", l.path), zap.Int("skipped", skipped-1))
	}
	return campaigns, nil
}

func (l *CSVCampaignLog) Append(ctx context.Context, campaigns []models.Campaign) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open campaign log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat campaign log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(models.CampaignRecordHeader); err != nil {
			return fmt.Errorf("write campaign log header: %w", err)
		}
	}
	for i := range campaigns {
		if err := w.Write(campaigns[i].MarshalRecord()); err != nil {
			return fmt.Errorf("write campaign row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// readRows loads every row of a CSV file, tolerating rows with the
// wrong field count. A missing file is not an error.
func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Unparsable remainder; keep what was read.
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeRows(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
