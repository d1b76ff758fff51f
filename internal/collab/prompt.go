// internal/collab/prompt.go
package collab

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"mcp-food-log/internal/portions"
)

// LinePrompter asks for quantities on a line-oriented terminal.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// AskQuantity prints the question and parses one line of input. Empty or
// unparseable answers resolve to the default quantity; only a closed input
// is an error.
func (p *LinePrompter) AskQuantity(ctx context.Context, food, unit string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fmt.Fprintf(p.out, "Quantità di %s?\nInserisci quanta %s c'è (%s): ", food, food, unit)

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return 0, fmt.Errorf("failed to read quantity: %w", err)
	}
	return portions.ParseQuantity(strings.TrimSpace(line)), nil
}
