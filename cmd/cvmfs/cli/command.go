// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is a node of the command tree.
type Command struct {
	// Name is the word that selects this command on the command line.
	Name string

	// Summary is the one-line description listed by the parent.
	Summary string

	// Description heads the command's own help; Summary is used when
	// it is empty.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags returns the command's flag set. It may be called more than
	// once and must bind the same params each time. Nil means the
	// command takes no flags.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	// On a command with Subcommands it runs when the first argument is
	// a flag rather than a subcommand name.
	Run func(args []string) error

	parent *Command
}

// Example is a usage example shown in help output.
type Example struct {
	Description string
	Command     string
}

// errSubcommandRequired is returned by a command that only groups
// subcommands when none is named.
var errSubcommandRequired = errors.New("subcommand required")

// Execute runs the command line args against the tree rooted at c.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			return c.dispatch(args[0], args[1:])
		}
		if c.Run == nil {
			c.PrintHelp(os.Stderr)
			return errSubcommandRequired
		}
	}

	args, err := c.parseFlags(args)
	if err != nil {
		return err
	}
	if c.Run == nil {
		c.PrintHelp(os.Stderr)
		return fmt.Errorf("no action defined for %q", c.fullName())
	}
	return c.Run(args)
}

// dispatch hands rest to the subcommand called name.
func (c *Command) dispatch(name string, rest []string) error {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub.Execute(rest)
		}
	}
	if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
		return c.usageError("unknown command %q (did you mean %q?)", name, suggestion)
	}
	return c.usageError("unknown command %q", name)
}

// parseFlags parses args against the command's flags and returns the
// positional arguments.
func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}

	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		if strings.Contains(err.Error(), "unknown") {
			if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
				return nil, c.usageError("%v (did you mean %s?)", err, suggestion)
			}
		}
		return nil, c.usageError("%v", err)
	}
	return flagSet.Args(), nil
}

// usageError formats a command line mistake with a pointer to help.
func (c *Command) usageError(format string, values ...any) error {
	return fmt.Errorf("%s\n\nRun '%s --help' for usage.", fmt.Sprintf(format, values...), c.fullName())
}

// PrintHelp writes the command's help to w: description, usage,
// subcommands, flags and examples.
func (c *Command) PrintHelp(w io.Writer) {
	if heading := c.Description; heading != "" {
		fmt.Fprintf(w, "%s\n\n", heading)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if defaults := c.flagDefaults(); defaults != "" {
		fmt.Fprintf(w, "\nFlags:\n%s", defaults)
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description == "" {
				fmt.Fprintf(w, "  %s\n", example.Command)
				continue
			}
			fmt.Fprintf(w, "  # %s\n  %s\n\n", example.Description, example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.fullName())
	}
}

func (c *Command) usageLine() string {
	switch {
	case c.Usage != "":
		return c.Usage
	case len(c.Subcommands) > 0:
		return c.fullName() + " <command> [flags]"
	default:
		return c.fullName() + " [flags]"
	}
}

func (c *Command) flagDefaults() string {
	if c.Flags == nil {
		return ""
	}
	return c.Flags().FlagUsages()
}

// fullName returns the command path, e.g. "cvmfs ls".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}
