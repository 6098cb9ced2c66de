// Package console reads operator input: a go-prompt REPL when stdin is a
// terminal, plain lines otherwise.
package console

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

// Handler is called once per input line. Returning false ends the loop.
type Handler func(line string) bool

// Options configures MainLoop.
type Options struct {
	Prompt string
	Title  string
	// Suggestions are offered by the REPL completer.
	Suggestions []prompt.Suggest
	// In overrides stdin. When set, the line reader is always used.
	In io.Reader
}

// MainLoop feeds input lines to h until h returns false, input ends or ctx
// is done. In the REPL a cancelled ctx is noticed on the next keystroke.
func MainLoop(ctx context.Context, opts Options, h Handler) error {
	if opts.In == nil && isatty.IsTerminal(os.Stdin.Fd()) {
		runPrompt(ctx, opts, h)
		return nil
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	return RunLines(ctx, in, h)
}

func runPrompt(ctx context.Context, opts Options, h Handler) {
	var quit atomic.Bool
	exec := func(line string) {
		if !h(strings.TrimSpace(line)) {
			quit.Store(true)
		}
	}
	complete := func(d prompt.Document) []prompt.Suggest {
		if d.TextBeforeCursor() == "" {
			return nil
		}
		return prompt.FilterHasPrefix(opts.Suggestions, d.GetWordBeforeCursor(), true)
	}
	p := prompt.New(exec, complete,
		prompt.OptionPrefix(opts.Prompt),
		prompt.OptionTitle(opts.Title),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool {
			return quit.Load() || ctx.Err() != nil
		}),
	)
	p.Run()
}

// RunLines feeds trimmed lines from r to h. It returns nil when h returns
// false or r is exhausted, and ctx.Err() when ctx ends first. The scanning
// goroutine may stay blocked in r.Read after a cancelled return.
func RunLines(ctx context.Context, r io.Reader, h Handler) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			if !h(line) {
				return nil
			}
		}
	}
}
