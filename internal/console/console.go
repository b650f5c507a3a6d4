package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/idanmel/skyarena/internal/services/account"
)

// Console is the local operator command loop. It owns process shutdown:
// EXIT cancels the context every other loop runs under.
type Console struct {
	accounts *account.Service
	logger   *slog.Logger
	in       io.Reader
	out      io.Writer
	shutdown context.CancelFunc
}

// New creates an operator console reading commands from in.
func New(accounts *account.Service, logger *slog.Logger, in io.Reader, out io.Writer, shutdown context.CancelFunc) *Console {
	return &Console{
		accounts: accounts,
		logger:   logger,
		in:       in,
		out:      out,
		shutdown: shutdown,
	}
}

// Run reads operator commands until EXIT or end of input.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.in)
	c.printf("skyarena operator console; HELP for commands\n")

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if c.execute(ctx, line) {
			return
		}
	}
}

// execute runs one command line; returns true when the loop should stop.
func (c *Console) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)

	switch strings.ToUpper(fields[0]) {
	case "HELP":
		c.printf("commands:\n")
		c.printf("  DELETE ACCOUNT <name>  remove an account\n")
		c.printf("  EXIT                   shut the server down\n")
		c.printf("  HELP                   show this text\n")
	case "EXIT":
		c.printf("shutting down\n")
		c.logger.Info("operator requested shutdown")
		c.shutdown()
		return true
	case "DELETE":
		if len(fields) != 3 || !strings.EqualFold(fields[1], "ACCOUNT") {
			c.printf("usage: DELETE ACCOUNT <name>\n")
			return false
		}
		username := fields[2]
		if err := c.accounts.Delete(ctx, username); err != nil {
			c.printf("delete failed: %v\n", err)
			return false
		}
		c.printf("account %s deleted\n", username)
	default:
		c.printf("unknown command %q; HELP for commands\n", fields[0])
	}
	return false
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
