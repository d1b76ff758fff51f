// internal/display/display.go
package display

import (
	"fmt"
	"io"

	"mcp-food-log/internal/models"
)

// ItemLine renders one logged item with calories rounded to an integer.
func ItemLine(item models.LoggedItem) string {
	return fmt.Sprintf("%s – %.0f kcal", item.Label, item.Calories)
}

// TotalsLines renders calories as an integer and the other nutrients to one decimal.
func TotalsLines(t models.Totals) []string {
	return []string{
		fmt.Sprintf("Calorie: %.0f kcal", t.Calories),
		fmt.Sprintf("Proteine: %.1f g", t.Protein),
		fmt.Sprintf("Carboidrati: %.1f g", t.Carbs),
		fmt.Sprintf("Grassi: %.1f g", t.Fat),
		fmt.Sprintf("Fibre: %.1f g", t.Fiber),
	}
}

// Render writes the day's log: photo indicator, items in logging order, then totals.
func Render(w io.Writer, photo *models.Photo, items []models.LoggedItem, totals models.Totals) error {
	if photo != nil {
		if _, err := fmt.Fprintln(w, "Foto caricata!"); err != nil {
			return err
		}
	}
	for _, item := range items {
		if _, err := fmt.Fprintln(w, ItemLine(item)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "\nTotali giornata"); err != nil {
		return err
	}
	for _, line := range TotalsLines(totals) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
