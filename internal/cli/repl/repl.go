package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultPrompt is printed before each line is read.
const DefaultPrompt = "diskcache> "

// Executor runs one command line split into arguments.
type Executor func(ctx context.Context, args []string) error

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	exec      Executor
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO sets the input and output streams.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithPrompt sets the prompt.
func WithPrompt(prompt string) Option {
	return func(r *REPL) { r.prompt = prompt }
}

// WithCompleter sets the command names used for suggestions.
func WithCompleter(c *Completer) Option {
	return func(r *REPL) { r.completer = c }
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// New creates a new REPL instance dispatching to exec.
func New(exec Executor, opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		prompt:    DefaultPrompt,
		exec:      exec,
		completer: NewCompleter(nil),
		history:   NewHistory("", DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until exit, EOF or ctx ends. Command errors are printed
// and do not stop the loop.
func (r *REPL) Run(ctx context.Context) error {
	reader := bufio.NewReader(r.input)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		args, perr := SplitArgs(line)
		if perr != nil {
			fmt.Fprintf(r.output, "Error: %v\n", perr)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return nil
		case "history":
			r.printHistory()
			continue
		}

		if !r.completer.Known(args[0]) {
			r.printUnknown(args[0])
			continue
		}

		if err := r.exec(ctx, args); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

func (r *REPL) printHistory() {
	for i, entry := range r.history.Entries() {
		fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
	}
}

func (r *REPL) printUnknown(name string) {
	fmt.Fprintf(r.output, "Error: unknown command %q\n", name)
	if name == "" {
		return
	}
	if s := r.completer.Complete(name[:1]); len(s) > 0 {
		fmt.Fprintf(r.output, "Did you mean: %s\n", strings.Join(s, ", "))
	}
}
