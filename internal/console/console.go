// Package console is a thin operator REPL over stdin. Every command
// resolves to the same registry reads and orchestrator mutations the
// protocol layer uses.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog/log"

	"github.com/dpetrov/couchsync/internal/app"
)

type Console struct {
	Orch *app.Orchestrator
	In   io.Reader
	Out  io.Writer
}

// Run reads commands until EOF, "exit", or ctx cancellation.
func (c *Console) Run(ctx context.Context) {
	sc := bufio.NewScanner(c.In)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !c.dispatch(sc.Text()) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		log.Warn().Err(err).Str("module", "console").Msg("console input error")
	}
}

// dispatch executes one line; returns false on exit.
func (c *Console) dispatch(line string) bool {
	args, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintf(c.Out, "parse error: %v\n", err)
		return true
	}
	if len(args) == 0 {
		return true
	}

	switch args[0] {
	case "exit", "quit":
		return false

	case "help":
		fmt.Fprintln(c.Out, "commands: rooms | clients | state <roomId> | <roomId> <path> | exit")

	case "rooms":
		infos := c.Orch.Registry.Rooms()
		if len(infos) == 0 {
			fmt.Fprintln(c.Out, "no active rooms")
			return true
		}
		for _, info := range infos {
			fmt.Fprintf(c.Out, "%s\t%d clients\t%s\n", info.ID, info.MemberCount, info.Path)
		}

	case "clients":
		for _, info := range c.Orch.Registry.Rooms() {
			for _, s := range c.Orch.Registry.Members(info.ID) {
				fmt.Fprintf(c.Out, "%s\t%s\n", info.ID, s.ClientID())
			}
		}

	case "state":
		if len(args) != 2 {
			fmt.Fprintln(c.Out, "usage: state <roomId>")
			return true
		}
		st, ok := c.Orch.Registry.State(args[1])
		if !ok {
			fmt.Fprintf(c.Out, "no such room: %s\n", args[1])
			return true
		}
		fmt.Fprintf(c.Out, "path=%s playing=%v position=%.2f\n",
			st.Path, st.Playing, st.EffectivePosition(c.Orch.Clock.Now()))

	default:
		if len(args) != 2 {
			fmt.Fprintf(c.Out, "unknown command: %s (try help)\n", args[0])
			return true
		}
		c.Orch.Navigate(args[0], args[1], app.ByServerAdmin)
		fmt.Fprintf(c.Out, "room %s -> %s\n", args[0], args[1])
	}
	return true
}
