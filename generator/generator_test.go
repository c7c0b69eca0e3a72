package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCountAndDistinctIds(t *testing.T) {
	g := New(42)
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			records, err := g.Generate(137, "x", kind)
			require.NoError(t, err)
			require.Len(t, records, 137)

			seen := map[string]bool{}
			for _, r := range records {
				assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
				seen[r.ID] = true
				assert.Equal(t, kind, r.Kind)
			}
			assert.Equal(t, "x_000001", records[0].ID)
			assert.Equal(t, "x_000137", records[136].ID)
		})
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	g := New(1)
	_, err := g.Generate(0, "x", Basic)
	assert.Error(t, err)
	_, err = g.Generate(1, "", Basic)
	assert.Error(t, err)
	_, err = g.Generate(1, "x", Kind("widget"))
	assert.Error(t, err)
}

func TestPerformanceRanges(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	g := New(7).WithClock(func() time.Time { return now })
	records, err := g.Generate(500, "perf_500", Performance)
	require.NoError(t, err)

	for _, r := range records {
		price := r.Float("price")
		assert.GreaterOrEqual(t, price, 10.)
		assert.LessOrEqual(t, price, 1000.)

		rating := r.Float("rating")
		assert.GreaterOrEqual(t, rating, 1.)
		assert.LessOrEqual(t, rating, 5.)
		assert.InDelta(t, rating, float64(int(rating*10+0.5))/10, 1e-9)

		assert.Contains(t, performanceCategories, r.String("category"))

		created := r.Time("created_at")
		assert.False(t, created.After(now))
		assert.False(t, created.Before(now.AddDate(0, 0, -365)))

		tagList := r.Fields["tags"].([]string)
		assert.GreaterOrEqual(t, len(tagList), 1)
		assert.LessOrEqual(t, len(tagList), 3)
	}
}

func TestEnhancedAttributesFollowCategory(t *testing.T) {
	records, err := New(3).Generate(200, "enhanced", Enhanced)
	require.NoError(t, err)

	for _, r := range records {
		switch r.String("category") {
		case "electronics":
			color, ok := r.Get("specifications.color")
			require.True(t, ok)
			assert.Contains(t, colors, color)
			assert.NotContains(t, r.Fields, "sizes")
		case "books":
			assert.Regexp(t, `^978-[0-9]{10}$`, r.String("isbn"))
			assert.Len(t, r.Fields["genres"], 2)
		case "clothing":
			assert.Len(t, r.Fields["sizes"], 3)
			assert.Len(t, r.Fields["colors"], 2)
		default:
			t.Fatalf("unexpected category %q", r.String("category"))
		}
	}
}

func TestComplexNesting(t *testing.T) {
	records, err := New(5).Generate(20, "complex", Complex)
	require.NoError(t, err)

	for _, r := range records {
		reviews := r.Fields["reviews"].([]any)
		assert.GreaterOrEqual(t, len(reviews), 2)
		assert.LessOrEqual(t, len(reviews), 4)
		for _, rv := range reviews {
			rating := rv.(map[string]any)["rating"].(int)
			assert.GreaterOrEqual(t, rating, 1)
			assert.LessOrEqual(t, rating, 5)
		}
		views, ok := r.Get("analytics.views")
		require.True(t, ok)
		assert.GreaterOrEqual(t, views.(int), 100)
	}
}

func TestEcommerceIdentifiers(t *testing.T) {
	g := New(11)
	customers, err := g.Generate(50, "CUST", Customer)
	require.NoError(t, err)
	assert.Equal(t, "CUST_000001", customers[0].ID)
	assert.Equal(t, "CUST_000001", customers[0].String("customer_id"))
	assert.Equal(t, "customer1@email.com", customers[0].String("email"))
	assert.Regexp(t, `^\+?[0-9]{10,15}$`, customers[49].String("phone"))

	inventory, err := g.Generate(100, "PROD", Inventory)
	require.NoError(t, err)
	for _, r := range inventory {
		assert.Equal(t, int64(0), r.Int("reserved_quantity"))
		assert.GreaterOrEqual(t, r.Int("stock_quantity"), int64(10))
	}

	assert.Regexp(t, `^TXN_[0-9A-F]{8}$`, g.TransactionRef())

	items, total := g.OrderItems("ORD_T0000001", 100)
	require.NotEmpty(t, items)
	sum := 0.
	for n, item := range items {
		assert.Equal(t, FormatID("ORD_T0000001", n+1, 1), item.ID)
		sum += item.Float("total_price")
	}
	assert.InDelta(t, sum, total, 0.05)
}

func TestSeedIsReproducible(t *testing.T) {
	now := time.Now()
	a, _ := New(99).WithClock(func() time.Time { return now }).Generate(10, "p", Performance)
	b, _ := New(99).WithClock(func() time.Time { return now }).Generate(10, "p", Performance)
	assert.Equal(t, a, b)
}
