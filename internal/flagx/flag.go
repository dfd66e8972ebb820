// Package flagx lets several flag sets share one argument list: each set
// parses only the flags it defines and ignores the rest.
package flagx

import (
	"flag"
	"strings"
)

// boolFlag matches flag values that take no argument, like the flag
// package's own bool flags.
type boolFlag interface {
	IsBoolFlag() bool
}

// Known returns the subset of args that fs defines, keeping values with
// their flags. Both "-name value" and "-name=value" are recognised, with
// one or two leading dashes. Bool flags never consume the next argument.
func Known(fs *flag.FlagSet, args []string) []string {
	known := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		name, hasValue := flagName(args[i])
		if name == "" {
			continue
		}
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		known = append(known, args[i])
		if hasValue || isBool(f) {
			continue
		}
		if i+1 < len(args) {
			known = append(known, args[i+1])
			i++
		}
	}

	return known
}

// ParseKnown parses the flags of fs found in args and ignores everything
// else.
func ParseKnown(fs *flag.FlagSet, args []string) error {
	return fs.Parse(Known(fs, args))
}

// ConfigPath returns the value of -c or -config in args, the last one
// winning, or "" when neither is given.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	if err := ParseKnown(fs, args); err != nil {
		return ""
	}

	return path
}

// SplitList splits a comma separated flag value, trimming blanks and
// dropping empty items. Node address lists are passed this way.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func flagName(arg string) (name string, hasValue bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", false
	}
	name = strings.TrimPrefix(arg[1:], "-")
	if name == "" || name[0] == '-' {
		return "", false
	}
	if i := strings.IndexByte(name, '='); i >= 0 {
		return name[:i], true
	}
	return name, false
}

func isBool(f *flag.Flag) bool {
	b, ok := f.Value.(boolFlag)
	return ok && b.IsBoolFlag()
}
