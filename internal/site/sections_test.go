package site

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sogif-site/internal/constants"
	"sogif-site/internal/kpi"
)

func provider(t *testing.T) *constants.Provider {
	t.Helper()
	raw, err := os.ReadFile("testdata/constants.json")
	require.NoError(t, err)
	bundle, err := kpi.Decode(raw)
	require.NoError(t, err)
	return constants.NewProvider(bundle)
}

func TestBuildHeroAndMetrics(t *testing.T) {
	p := provider(t)

	hero, err := BuildHero(p)
	require.NoError(t, err)
	assert.Equal(t, Hero{AsAt: "31 March 2025", DistributionRate: "6.50%", FUM: "$171.3m", PortalURL: "https://portal.sogif.example/login"}, hero)

	km, err := BuildKeyMetrics(p)
	require.NoError(t, err)
	require.Len(t, km.Metrics, 5)
	assert.Equal(t, "$1.0850", km.Metrics[0].Value)
	assert.Equal(t, "$1.0412", km.Metrics[1].Value)
	assert.Equal(t, "$1.0573", km.Metrics[2].Value)
}

func TestBuildPerformanceIsChronological(t *testing.T) {
	perf, err := BuildPerformance(provider(t))
	require.NoError(t, err)
	require.Len(t, perf.Points, 3)

	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03"}, []string{perf.Points[0].SortKey, perf.Points[1].SortKey, perf.Points[2].SortKey})
	assert.Equal(t, "1.0500", perf.Points[0].IssuePrice)
	assert.Empty(t, perf.Points[1].RedemptionPrice)
	assert.Equal(t, "1.0412", perf.Points[2].RedemptionPrice)
	assert.Equal(t, CSVPath, perf.DownloadURL)
}

func TestBuildAllocationUsesLatestMonth(t *testing.T) {
	alloc, err := BuildAllocation(provider(t))
	require.NoError(t, err)
	require.NotNil(t, alloc)

	assert.Equal(t, "Mar 2025", alloc.Month)
	assert.Equal(t, Share{Label: "Cash", Amount: "$12000000", Percent: "7.0%"}, alloc.Buckets[0])
	assert.Equal(t, "37.4%", alloc.Buckets[1].Percent)
	assert.Equal(t, "55.6%", alloc.Buckets[2].Percent)
	require.Len(t, alloc.ByState, 8)
	assert.Equal(t, "QLD", alloc.ByState[0].Label)
	assert.Equal(t, "ACT", alloc.ByState[7].Label)
}

func TestBuildAllocationEmptySeries(t *testing.T) {
	b, err := kpi.NewBundle(kpi.Performance{}, nil, kpi.Reference{})
	require.NoError(t, err)

	alloc, err := BuildAllocation(constants.NewProvider(b))
	require.NoError(t, err)
	assert.Nil(t, alloc)
}

func TestBuildUnknownSection(t *testing.T) {
	_, err := Build("footer", provider(t))
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestBuildEachNamedSection(t *testing.T) {
	p := provider(t)
	for _, name := range SectionNames {
		v, err := Build(name, p)
		require.NoError(t, err, name)
		assert.NotNil(t, v, name)
	}
}

func TestBuildPage(t *testing.T) {
	page, err := BuildPage(context.Background(), provider(t))
	require.NoError(t, err)

	assert.Equal(t, "31 March 2025", page.Hero.AsAt)
	assert.Len(t, page.Performance.Points, 3)
	assert.Equal(t, "2012-07-01", page.Invest.InceptionDate)
	assert.NotNil(t, page.Allocation)
}

func TestSectionsOutsideProviderScope(t *testing.T) {
	_, err := BuildPage(context.Background(), nil)
	assert.True(t, errors.Is(err, constants.ErrContextUnavailable))

	_, err = BuildInvest(constants.NewProvider(nil))
	assert.True(t, errors.Is(err, constants.ErrContextUnavailable))
}
