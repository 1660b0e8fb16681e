package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
)

const (
	defaultHelpDesc    = "Show help"
	defaultVersionDesc = "Print version and exit"
)

type HelpVersionFlags struct {
	Help    bool
	Version bool
}

func AddHelpVersionFlags(fs *flag.FlagSet, helpDesc, versionDesc string) *HelpVersionFlags {
	if fs == nil {
		return &HelpVersionFlags{}
	}
	if helpDesc == "" {
		helpDesc = defaultHelpDesc
	}
	if versionDesc == "" {
		versionDesc = defaultVersionDesc
	}
	flags := &HelpVersionFlags{}
	fs.BoolVar(&flags.Help, "help", false, helpDesc)
	fs.BoolVar(&flags.Help, "h", false, helpDesc)
	fs.BoolVar(&flags.Version, "version", false, versionDesc)
	fs.BoolVar(&flags.Version, "v", false, versionDesc)
	return flags
}

// Option is one row of a grouped help listing.
type Option struct {
	Flag string
	Desc string
}

// WriteOptionGroup prints a titled block of flag descriptions with the
// alignment shared by all parley binaries.
func WriteOptionGroup(out io.Writer, title string, options []Option) {
	fmt.Fprintf(out, "%s:\n", title)
	for _, option := range options {
		fmt.Fprintf(out, "  %-24s %s\n", option.Flag, option.Desc)
	}
	fmt.Fprintln(out)
}

// EnvOr returns the environment value for key, or fallback when the
// variable is unset or empty.
func EnvOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
