package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerpipe/internal/config"
	"peerpipe/internal/dates"
	"peerpipe/internal/pipeline"
	"peerpipe/internal/staleness"
)

var fetchToday = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestSelectFetchItemsDefaultIsYesterday(t *testing.T) {
	items := selectFetchItems([]string{"a", "b"}, nil, "", false, "", fetchToday)
	assert.Equal(t, []pipeline.Item{
		{Date: "2024-03-09", UnitID: "a"},
		{Date: "2024-03-09", UnitID: "b"},
	}, items)
}

func TestSelectFetchItemsSyncUsesStaleSet(t *testing.T) {
	stale := []staleness.Entry{
		{Date: "2024-03-08", UnitID: "a", Reason: staleness.ReasonMissing},
		{Date: "2024-03-09", UnitID: "b", Reason: staleness.ReasonChanged},
	}
	items := selectFetchItems([]string{"a", "b"}, stale, "", true, "", fetchToday)
	assert.Equal(t, []pipeline.Item{
		{Date: "2024-03-08", UnitID: "a"},
		{Date: "2024-03-09", UnitID: "b"},
	}, items)
}

func TestSelectFetchItemsExplicitDate(t *testing.T) {
	items := selectFetchItems([]string{"a", "b"}, nil, "2024-01-01", false, "", fetchToday)
	require.Len(t, items, 2)
	assert.Equal(t, "2024-01-01", items[0].Date)
}

func TestSelectFetchItemsQueryFilter(t *testing.T) {
	items := selectFetchItems([]string{"a", "b"}, nil, "", false, "b", fetchToday)
	assert.Equal(t, []pipeline.Item{{Date: "2024-03-09", UnitID: "b"}}, items)
}

func renderConfig() *config.Config {
	return &config.Config{
		Dates: dates.Policy{Mode: dates.ModeList, List: []string{"2024-03-08", "2024-03-09"}},
	}
}

func TestSelectRenderDatesWindowIntersection(t *testing.T) {
	available := []string{"2024-03-09", "2024-03-08", "2024-03-01"}
	got, err := selectRenderDates(renderConfig(), available, "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-09", "2024-03-08"}, got, "only configured dates with data render")
}

func TestSelectRenderDatesLatestOnly(t *testing.T) {
	got, err := selectRenderDates(renderConfig(), []string{"2024-03-09", "2024-03-08"}, "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-09"}, got)
}

func TestSelectRenderDatesOverride(t *testing.T) {
	available := []string{"2024-03-09", "2024-03-08"}

	got, err := selectRenderDates(renderConfig(), available, "2024-03-08", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-08"}, got)

	_, err = selectRenderDates(renderConfig(), available, "2023-01-01", false)
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr, "override without data is a configuration error")
}
