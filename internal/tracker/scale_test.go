package tracker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mcp-food-log/internal/models"
)

func item(cal, protein, carbs, fat, fiber float64) models.LoggedItem {
	return models.LoggedItem{Calories: cal, Protein: protein, Carbs: carbs, Fat: fat, Fiber: fiber}
}

func assertTotalsInDelta(t *testing.T, want, got models.Totals) {
	t.Helper()
	assert.InDelta(t, want.Calories, got.Calories, 1e-9)
	assert.InDelta(t, want.Protein, got.Protein, 1e-9)
	assert.InDelta(t, want.Carbs, got.Carbs, 1e-9)
	assert.InDelta(t, want.Fat, got.Fat, 1e-9)
	assert.InDelta(t, want.Fiber, got.Fiber, 1e-9)
}

func TestScaleBanana(t *testing.T) {
	got := Scale(models.NutrientProfile{Calories: 89, Protein: 1.1}, 300)
	assert.InDelta(t, 267.0, got.Calories, 1e-9)
	assert.InDelta(t, 3.3, got.Protein, 1e-9)
	assert.Equal(t, 0.0, got.Carbs)
}

func TestScaleIsLinearPerField(t *testing.T) {
	p := models.NutrientProfile{Calories: 123.4, Protein: 5.6, Carbs: 78.9, Fat: 10.1, Fiber: 2.3}
	for _, g := range []float64{0, 1, 50, 100, 250.5, 1000} {
		got := Scale(p, g)
		assert.InDelta(t, p.Calories*g/100, got.Calories, 1e-9)
		assert.InDelta(t, p.Protein*g/100, got.Protein, 1e-9)
		assert.InDelta(t, p.Carbs*g/100, got.Carbs, 1e-9)
		assert.InDelta(t, p.Fat*g/100, got.Fat, 1e-9)
		assert.InDelta(t, p.Fiber*g/100, got.Fiber, 1e-9)
	}
}

func TestScaleKeepsPrecision(t *testing.T) {
	got := Scale(models.NutrientProfile{Calories: 33.333}, 10)
	assert.InDelta(t, 3.3333, got.Calories, 1e-12)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Equal(t, models.Totals{}, Aggregate(nil))
	assert.Equal(t, models.Totals{}, Aggregate([]models.LoggedItem{}))
}

func TestAggregateOrderIndependent(t *testing.T) {
	a := item(100, 1, 2, 3, 4)
	b := item(50, 0.5, 0.25, 0, 1)

	assert.Equal(t, 150.0, Aggregate([]models.LoggedItem{a, b}).Calories)
	assert.Equal(t, 150.0, Aggregate([]models.LoggedItem{b, a}).Calories)

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	items := make([]models.LoggedItem, 20)
	for i := range items {
		items[i] = item(r.Float64()*500, r.Float64()*30, r.Float64()*80, r.Float64()*40, r.Float64()*10)
	}
	want := Aggregate(items)
	for i := 0; i < 10; i++ {
		shuffled := append([]models.LoggedItem(nil), items...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assertTotalsInDelta(t, want, Aggregate(shuffled))
	}
}

func TestAggregateIsIncremental(t *testing.T) {
	items := []models.LoggedItem{item(10, 1, 1, 1, 1), item(20, 2, 2, 2, 2)}
	x := item(5.5, 0.1, 0.2, 0.3, 0.4)

	got := Aggregate(append(items, x))
	assertTotalsInDelta(t, Aggregate(items).Add(x), got)
}

func TestSessionTotalsFollowItems(t *testing.T) {
	s := RestoreSession("s1", time.Now(), []models.LoggedItem{item(100, 1, 1, 1, 1)})
	s.append(item(50, 1, 1, 1, 1))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 150.0, s.Totals().Calories)

	items := s.Items()
	items[0].Calories = 0
	assert.Equal(t, 150.0, s.Totals().Calories)
}
