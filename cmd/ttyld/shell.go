package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/dshills/ttyld/internal/app"
	"github.com/dshills/ttyld/internal/integration/pty"
	"github.com/dshills/ttyld/internal/integration/session"
	"github.com/dshills/ttyld/internal/tty"
	"github.com/dshills/ttyld/internal/tty/termios"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run an interactive session through an emulated terminal.",
	Long: `Put this terminal into raw mode and route every keystroke through the
master side of an emulated pair. A built-in program reads canonical lines
from the slave side and answers each one, so line editing, echo and signal
characters behave as the configured settings say.

Type "stty" to print the current slave settings, "exit" or ^D to quit.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

var (
	shellDevice string
	shellQuiet  bool
)

func init() {
	shellCmd.Flags().StringVar(&shellDevice, "device", "", "terminal device the master drives, overriding pty.device")
	shellCmd.Flags().BoolVarP(&shellQuiet, "quiet", "q", false, "discard log output")
}

func runShell(cmd *cobra.Command, _ []string) error {
	application, err := app.New(app.Options{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		Device:     shellDevice,
		Quiet:      shellQuiet,
		Watch:      configPath != "",
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	runDone := application.Go(func() error { return application.Run(ctx) })

	err = shell(ctx, application, cmd.OutOrStdout())
	if errors.Is(application.Shutdown(), app.ErrNotRunning) {
		// Run has not started yet; the cancelled context ends it at once.
		cancel()
	}
	if runErr := <-runDone; err == nil {
		err = runErr
	}
	return err
}

func shell(ctx context.Context, application *app.Application, out io.Writer) error {
	mgr := application.Manager()
	master, err := mgr.OpenMaster(ctx, 0)
	if err != nil {
		return errors.Wrap(err, "opening master")
	}
	defer master.Close()

	pid := os.Getpid()
	leader := tty.WithCaller(ctx, tty.Caller{PID: pid, PGID: pid, SID: pid})
	slave, err := mgr.OpenSlave(leader, master.Index(), 0)
	if err != nil {
		return errors.Wrap(err, "opening slave")
	}
	defer slave.Close()

	sigs := make(chan session.Delivery, 8)
	application.Sessions().OnSignal(func(d session.Delivery) {
		select {
		case sigs <- d:
		default:
		}
	})

	stdin := int(os.Stdin.Fd())
	if term.IsTerminal(stdin) {
		// log lines on stderr would tear up the raw screen
		if application.Config().Log.File == "" {
			log := application.Logger()
			log.Disable()
			defer log.Enable()
		}

		state, err := term.MakeRaw(stdin)
		if err != nil {
			return errors.Wrap(err, "entering raw mode")
		}
		defer func() { _ = term.Restore(stdin, state) }()

		if cols, rows, err := term.GetSize(stdin); err == nil {
			ws := termios.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
			if err := master.Control(ctx, tty.TIOCSWINSZ, &ws); err != nil {
				application.Logger().Warn("setting window size: %v", err)
			}
		}
	}

	fmt.Fprintf(out, "%s %s <-> %s, type %s or ^D to quit\r\n",
		yellow("ttyld:"), master.Name(), slave.Name(), cyan("exit"))

	go func() { _, _ = io.Copy(master, os.Stdin) }()
	go func() { _, _ = io.Copy(out, master) }()

	return <-application.Go(func() error { return serveLines(leader, slave, sigs) })
}

// serveLines is the program running on the slave side. It answers each
// line it reads until it sees exit, end of file or SIGQUIT.
func serveLines(ctx context.Context, slave *pty.File, sigs <-chan session.Delivery) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-sigs:
				fmt.Fprintf(slave, "\n[%s]\n", unix.SignalName(d.Signal))
				if d.Signal == unix.SIGQUIT {
					cancel()
					return
				}
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		if _, err := io.WriteString(slave, "> "); err != nil {
			return nil
		}
		n, err := slave.ReadContext(ctx, buf)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "reading slave")
		}
		if n == 0 {
			return nil
		}

		line := strings.TrimRight(string(buf[:n]), "\r\n")
		switch line {
		case "exit":
			return nil
		case "stty":
			var t termios.Termios
			if err := slave.Control(ctx, tty.TCGETA, &t); err != nil {
				return errors.Wrap(err, "TCGETA")
			}
			var ws termios.Winsize
			if err := slave.Control(ctx, tty.TIOCGWINSZ, &ws); err != nil {
				return errors.Wrap(err, "TIOCGWINSZ")
			}
			fmt.Fprintf(slave, "%s\nrows %d; columns %d\n", t.String(), ws.Rows, ws.Cols)
		default:
			fmt.Fprintf(slave, "read %d bytes: %q\n", n, buf[:n])
		}
	}
}
