package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/ttyld/internal/config"
	"github.com/dshills/ttyld/internal/tty/termios"
)

var sttyCmd = &cobra.Command{
	Use:   "stty",
	Short: "Print the settings new terminals start with.",
	Long: `Print the terminal attributes and window size a newly allocated pair
starts with, after applying the configuration file and TTYLD_ environment
variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return errors.Wrap(err, "invalid configuration")
		}
		tio, err := cfg.TTY.Termios()
		if err != nil {
			return err
		}
		printStty(cmd.OutOrStdout(), tio, cfg.TTY.Winsize())
		return nil
	},
}

func printStty(out io.Writer, t termios.Termios, ws termios.Winsize) {
	fmt.Fprintf(out, "speed %d baud; rows %d; columns %d;\n", t.Ospeed, ws.Rows, ws.Cols)

	for _, set := range []termios.FlagSet{termios.InputFlags, termios.OutputFlags, termios.ControlFlags, termios.LocalFlags} {
		names := termios.FlagNames(set, t.Flags(set))
		for i, n := range names {
			names[i] = green(strings.ToLower(n))
		}
		if len(names) == 0 {
			names = []string{yellow("(none)")}
		}
		fmt.Fprintf(out, "%s: %s\n", cyan(set.String()), strings.Join(names, " "))
	}

	type cc struct {
		name string
		idx  int
	}
	var ccs []cc
	for name, idx := range termios.ControlCharNames {
		ccs = append(ccs, cc{name, idx})
	}
	sort.Slice(ccs, func(i, j int) bool { return ccs[i].idx < ccs[j].idx })

	var parts []string
	for _, c := range ccs {
		parts = append(parts, fmt.Sprintf("%s = %s", c.name, formatControlChar(c.idx, t.CC[c.idx])))
	}
	fmt.Fprintln(out, strings.Join(parts, "; ")+";")
}

// formatControlChar renders a control character the way stty does.
func formatControlChar(idx int, c uint8) string {
	switch {
	case idx == termios.VMIN || idx == termios.VTIME:
		return fmt.Sprint(c)
	case c == termios.Disabled:
		return "<undef>"
	case c == 0x7f:
		return "^?"
	case c < 0x20:
		return "^" + string(rune(c+'@'))
	default:
		return string(rune(c))
	}
}
