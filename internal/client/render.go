package client

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Render writes a terminal view of state to w.
func Render(w io.Writer, state State) error {
	switch s := state.(type) {
	case Idle:
		return nil
	case Validating:
		return nil
	case Fetching:
		_, err := fmt.Fprintf(w, "Fetching %s (blocks %d-%d)...\n", s.Params.Address, s.Params.From, s.Params.To)
		return err
	case ShowingError:
		if s.Detail == "" {
			_, err := fmt.Fprintln(w, s.Message)
			return err
		}
		_, err := fmt.Fprintf(w, "%s\n%s\n", s.Message, s.Detail)
		return err
	case Displaying:
		return renderAccount(w, s)
	default:
		return fmt.Errorf("unknown state %T", state)
	}
}

func renderAccount(w io.Writer, s Displaying) error {
	view := s.View
	if _, err := fmt.Fprintf(w, "Address: %s, Balance: %s, Normal tx: %d\n", view.Address, view.Balance, view.TxCount); err != nil {
		return err
	}
	if len(view.Rows) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Age\tBlock\tFrom\tTo\tValue\tGas Fee")
	for _, row := range view.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", row.Age, row.Block, row.From, row.To, row.Value, row.Fee)
	}
	return tw.Flush()
}
