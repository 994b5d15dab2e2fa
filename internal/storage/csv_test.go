package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/models"
)

func sampleRecords() []models.ImpressionRecord {
	return []models.ImpressionRecord{
		models.NewImpressionRecord("run-1", 3, 7, models.AdTypeText, models.DevicePC, "yahoo",
			models.GenderMale, models.IncomeHigh, models.Age25To34, 10, 6, 12),
		models.NewImpressionRecord("run-1", 4, 7, models.AdTypeVideo, models.DeviceMobile, "cnn",
			models.GenderFemale, models.IncomeLow, models.Age55To64, 5, 5, 9),
	}
}

func TestCSVHistoryStoreRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")
	store := NewCSVHistoryStore(path, zap.NewNop())

	records := sampleRecords()
	require.NoError(store.Save(ctx, records))

	got, err := store.Load(ctx)
	require.NoError(err)
	require.Equal(records, got)
}

func TestCSVHistoryStoreMissingFile(t *testing.T) {
	require := require.New(t)
	store := NewCSVHistoryStore(filepath.Join(t.TempDir(), "absent.csv"), zap.NewNop())

	got, err := store.Load(context.Background())
	require.NoError(err)
	require.Empty(got)
}

func TestCSVHistoryStoreSkipsMalformedRows(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")
	store := NewCSVHistoryStore(path, zap.NewNop())

	require.NoError(store.Save(ctx, sampleRecords()))

	// Corrupt the file with a short row and a non-numeric one.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(err)
	_, err = f.WriteString("garbage,row\nrun-2,notaday,7,text,pc,yahoo,male,MALE,low,LOW_INCOME,Age_25_34,YOUNG,1,1,0.1,0.1,0\n")
	require.NoError(err)
	require.NoError(f.Close())

	got, err := store.Load(ctx)
	require.NoError(err)
	require.Len(got, 2, "good rows survive, bad rows are skipped")
}

func TestCSVCampaignLogAppend(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "campaigns.csv")
	log := NewCSVCampaignLog(path, zap.NewNop())

	c1 := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 1, ReachImps: 1000, DayStart: 3, DayEnd: 7,
		TargetSegment: models.NewSegmentSet(models.SegmentMale),
	})
	c1.Budget = 0.9
	c1.Finalized = true
	require.NoError(log.Append(ctx, []models.Campaign{*c1}))

	c2 := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 2, ReachImps: 500, DayStart: 8, DayEnd: 10,
	})
	c2.Finalized = true
	require.NoError(log.Append(ctx, []models.Campaign{*c2}))

	got, err := log.Load(ctx)
	require.NoError(err)
	require.Len(got, 2, "second append must not repeat the header")
	require.Equal(1, got[0].ID)
	require.Equal(2, got[1].ID)
	require.Equal(int64(1000), got[0].ReachImps)
}

func TestInMemoryStoresCopy(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	hs := NewInMemoryHistoryStore()
	records := sampleRecords()
	require.NoError(hs.Save(ctx, records))

	records[0].Publisher = "mutated"
	got, err := hs.Load(ctx)
	require.NoError(err)
	require.Equal("yahoo", got[0].Publisher)

	cl := NewInMemoryCampaignLog()
	require.NoError(cl.Append(ctx, []models.Campaign{{CampaignTerms: models.CampaignTerms{ID: 1}}}))
	require.NoError(cl.Append(ctx, []models.Campaign{{CampaignTerms: models.CampaignTerms{ID: 2}}}))
	all, err := cl.Load(ctx)
	require.NoError(err)
	require.Len(all, 2)
}
