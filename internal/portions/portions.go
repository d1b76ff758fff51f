// internal/portions/portions.go
package portions

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mcp-food-log/internal/models"
)

// FallbackGramsPerUnit is used when a food or one of its units is missing from the table.
const FallbackGramsPerUnit = 100.0

// DefaultQuantity is what an empty or unparseable quantity answer resolves to.
const DefaultQuantity = 1.0

// Default returns the built-in portion table.
func Default() models.PortionTable {
	return models.PortionTable{
		"kiwi":       {"pezzo": 75},
		"noci":       {"pezzo": 5},
		"latte":      {"bicchiere": 200, "ml": 1},
		"pasta":      {"g": 100},
		"pomodori":   {"g": 50},
		"olio":       {"cucchiaio": 10},
		"parmigiano": {"g": 5},
	}
}

// Table is an immutable portion table.
type Table struct {
	entries models.PortionTable
}

// New copies entries into a Table so later changes to the map don't leak in.
func New(entries models.PortionTable) *Table {
	copied := make(models.PortionTable, len(entries))
	for food, units := range entries {
		u := make(map[string]float64, len(units))
		for name, grams := range units {
			u[name] = grams
		}
		copied[food] = u
	}
	return &Table{entries: copied}
}

// LoadFile reads a YAML portion table of the form
//
//	pasta:
//	  g: 100
//	latte:
//	  bicchiere: 200
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read portion table: %w", err)
	}

	var entries models.PortionTable
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse portion table: %w", err)
	}

	for food, units := range entries {
		for unit, grams := range units {
			if grams <= 0 || math.IsNaN(grams) || math.IsInf(grams, 0) {
				return nil, fmt.Errorf("portion %s/%s must be a positive number of grams, got %v", food, unit, grams)
			}
		}
	}

	return New(entries), nil
}

// GramsPerUnit looks up one unit of food, reporting whether the entry exists.
func (t *Table) GramsPerUnit(food, unit string) (float64, bool) {
	units, ok := t.entries[food]
	if !ok {
		return 0, false
	}
	grams, ok := units[unit]
	return grams, ok
}

// Resolve returns the total mass in grams for quantity units of food.
// Missing foods or units fall back to FallbackGramsPerUnit. It never fails.
func (t *Table) Resolve(food, unit string, quantity float64) float64 {
	grams, ok := t.GramsPerUnit(food, unit)
	if !ok {
		grams = FallbackGramsPerUnit
	}
	return grams * quantity
}

// Foods lists the foods in the table, sorted.
func (t *Table) Foods() []string {
	foods := make([]string, 0, len(t.entries))
	for food := range t.entries {
		foods = append(foods, food)
	}
	sort.Strings(foods)
	return foods
}

// Entries returns a copy of the underlying table.
func (t *Table) Entries() models.PortionTable {
	return New(t.entries).entries
}

// leadingNumber matches the numeric prefix of an answer such as "200g" or "1.5 kg".
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseQuantity turns a user answer into a quantity, reading its leading
// number so "200g" is 200. Answers without one, and NaN or infinite
// values, resolve to DefaultQuantity. A decimal comma is accepted.
func ParseQuantity(answer string) float64 {
	s := strings.Replace(strings.TrimSpace(answer), ",", ".", 1)
	num := leadingNumber.FindString(s)
	if num == "" {
		return DefaultQuantity
	}
	q, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(q) || math.IsInf(q, 0) {
		return DefaultQuantity
	}
	return q
}
