// Package console is the line-oriented debug console: an interactive
// adapter that feeds operator input through the same command pipeline as
// the network transports.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mhartlieb/pincore/internal/pipeline"
	"github.com/mhartlieb/pincore/internal/protocol"
	"go.uber.org/zap"
)

type Console struct {
	pipe   *pipeline.Pipeline
	logger *zap.Logger
	in     io.Reader
	out    io.Writer
}

func New(pipe *pipeline.Pipeline, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{pipe: pipe, logger: logger, in: in, out: out}
}

// Run reads command lines until the input is exhausted. Intended to run on
// its own goroutine; the process exits before this ever returns in normal
// operation.
func (c *Console) Run() {
	scanner := bufio.NewScanner(c.in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		c.logger.Debug("Console command", zap.String("command", line))

		cmd := c.pipe.Parser().Parse(line)
		if cmd.Type == protocol.CommandHelp {
			c.banner("Command Help")
			fmt.Fprintln(c.out, c.pipe.Parser().HelpText())
			continue
		}

		fmt.Fprintln(c.out, c.pipe.Process(line))
	}

	if err := scanner.Err(); err != nil {
		c.logger.Warn("Console input failed", zap.Error(err))
	}
}

func (c *Console) banner(title string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "========================================")
	fmt.Fprintln(c.out, "  "+title)
	fmt.Fprintln(c.out, "========================================")
}
