package generator

import (
	"dbeval/util"
	"fmt"
	"math/rand"
	"time"
)

const idWidth = 6

var (
	enhancedCategories    = []string{"electronics", "books", "clothing"}
	performanceCategories = []string{"electronics", "books", "clothing", "home", "sports"}
	brands                = []string{"Apple", "Samsung", "Sony"}
	colors                = []string{"Black", "White", "Silver"}
	genres                = []string{"Fiction", "Mystery", "Sci-Fi", "Romance"}
	sizes                 = []string{"XS", "S", "M", "L", "XL"}
	materials             = []string{"Cotton", "Polyester", "Wool"}
	clothingColors        = []string{"Red", "Blue", "Green", "Black"}
	variantColors         = []string{"Red", "Blue", "Green"}
	variantSizes          = []string{"S", "M", "L"}
	tags                  = []string{"new", "sale", "featured", "popular", "limited"}
	comments              = []string{"Great product!", "Good value", "Excellent quality"}
	PaymentMethods        = []string{"credit_card", "debit_card", "paypal", "bank_transfer"}
)

// Generator produces synthetic records from an explicit random source.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// New returns a generator with a pinned seed.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

// NewRandom returns a generator seeded from the clock.
func NewRandom() *Generator {
	return New(time.Now().UnixNano())
}

// WithClock replaces the time source used for date attributes.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func (g *Generator) Rand() *rand.Rand {
	return g.rng
}

func (g *Generator) Now() time.Time {
	return g.now()
}

// Generate returns exactly count records with ids prefix_000001..prefix_count.
func (g *Generator) Generate(count int, prefix string, kind Kind) ([]Record, error) {
	if count < 1 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}
	if prefix == "" {
		return nil, fmt.Errorf("prefix must not be empty")
	}

	var template func(i int, id string) map[string]any
	switch kind {
	case Basic:
		template = g.basic
	case Enhanced:
		template = g.enhanced
	case Complex:
		template = g.complex
	case Performance:
		template = g.performance
	case Customer:
		template = g.customer
	case Inventory:
		template = g.inventory
	case Order:
		template = g.order
	case Payment:
		template = g.payment
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}

	records := make([]Record, 0, count)
	for i := 1; i <= count; i++ {
		id := FormatID(prefix, i, idWidth)
		records = append(records, Record{ID: id, Kind: kind, Fields: template(i, id)})
	}
	return records, nil
}

func (g *Generator) intn(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) choice(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// sample returns k distinct elements of pool.
func (g *Generator) sample(pool []string, k int) []string {
	perm := g.rng.Perm(len(pool))
	out := make([]string, 0, k)
	for _, p := range perm[:k] {
		out = append(out, pool[p])
	}
	return out
}

func (g *Generator) daysAgo(lo, hi int) time.Time {
	return g.now().Add(-time.Duration(g.intn(lo, hi)) * 24 * time.Hour).UTC().Truncate(time.Millisecond)
}

func (g *Generator) basic(i int, _ string) map[string]any {
	return map[string]any{
		"name":       fmt.Sprintf("Basic Product %d", i),
		"price":      util.Round(g.uniform(10, 500), 2),
		"created_at": g.now().UTC().Truncate(time.Millisecond),
	}
}

func (g *Generator) enhanced(i int, id string) map[string]any {
	fields := g.basic(i, id)
	fields["name"] = fmt.Sprintf("Enhanced Product %d", i)
	category := g.choice(enhancedCategories)
	fields["category"] = category

	switch category {
	case "electronics":
		fields["brand"] = g.choice(brands)
		fields["warranty_years"] = g.intn(1, 3)
		fields["specifications"] = map[string]any{
			"weight_kg": util.Round(g.uniform(0.5, 5.0), 1),
			"color":     g.choice(colors),
		}
	case "books":
		fields["author"] = fmt.Sprintf("Author %d", i)
		fields["pages"] = g.intn(100, 500)
		fields["isbn"] = "978-" + util.RandomDigits(g.rng, 10)
		fields["genres"] = g.sample(genres, 2)
	case "clothing":
		fields["sizes"] = g.sample(sizes, 3)
		fields["material"] = g.choice(materials)
		fields["colors"] = g.sample(clothingColors, 2)
	}
	return fields
}

func (g *Generator) complex(i int, _ string) map[string]any {
	reviews := []any{}
	nReviews := g.intn(2, 4)
	for r := 0; r < nReviews; r++ {
		reviews = append(reviews, map[string]any{
			"reviewer": fmt.Sprintf("User%d", g.intn(1, 1000)),
			"rating":   g.intn(1, 5),
			"comment":  g.choice(comments),
			"date":     g.daysAgo(1, 30),
			"verified": g.rng.Intn(2) == 1,
		})
	}

	variants := []any{}
	nVariants := g.intn(1, 3)
	for v := 0; v < nVariants; v++ {
		variants = append(variants, map[string]any{
			"sku":            fmt.Sprintf("SKU-%d-%d", i, v),
			"color":          g.choice(variantColors),
			"size":           g.choice(variantSizes),
			"stock":          g.intn(0, 100),
			"price_modifier": util.Round(g.uniform(-10, 50), 2),
		})
	}

	return map[string]any{
		"name":     fmt.Sprintf("Complex Product %d", i),
		"price":    util.Round(g.uniform(100, 1000), 2),
		"reviews":  reviews,
		"variants": variants,
		"analytics": map[string]any{
			"views":          g.intn(100, 5000),
			"purchases":      g.intn(1, 100),
			"rating_average": util.Round(g.uniform(3.0, 5.0), 1),
			"last_updated":   g.now().UTC().Truncate(time.Millisecond),
		},
		"created_at": g.now().UTC().Truncate(time.Millisecond),
	}
}

func (g *Generator) performance(i int, _ string) map[string]any {
	return map[string]any{
		"name":        fmt.Sprintf("Performance Test Product %d", i),
		"price":       util.Round(g.uniform(10, 1000), 2),
		"category":    g.choice(performanceCategories),
		"description": fmt.Sprintf("This is a test product for performance testing %d", i),
		"created_at":  g.daysAgo(0, 365),
		"stock":       g.intn(0, 1000),
		"rating":      util.Round(g.uniform(1.0, 5.0), 1),
		"tags":        g.sample(tags, g.intn(1, 3)),
		"status":      "active",
	}
}
