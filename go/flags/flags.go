package flags

import (
	"errors"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// EnvNamespace prefixes every `env` tag, so `env:"LOG_LEVEL"` reads GRRR_LOG_LEVEL.
const EnvNamespace = "GRRR"

// ParseArgs parses the given args (program name excluded) into opts and returns the positional arguments left over.
// Values are taken, in increasing precedence, from `default` tags, the environment and the args.
func ParseArgs(opts any, name string, args []string) ([]string, error) {
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = name
	// Options live in the "Application Options" group; the root namespace does not reach them.
	for _, group := range parser.Groups() {
		group.EnvNamespace = EnvNamespace
	}
	rest, err := parser.ParseArgs(args)
	if err != nil {
		if IsHelp(err) {
			return nil, err
		}
		return nil, fmt.Errorf("parsing flags: %w", err)
	}
	return rest, nil
}

// MustParseArgs parses the given flags into opts, panicking on error.
func MustParseArgs(opts any, name string, args []string) []string {
	rest, err := ParseArgs(opts, name, args)
	if err != nil {
		panic(fmt.Errorf("parsing args: %w", err))
	}
	return rest
}

// IsHelp reports whether err is the help request error. Its message is the rendered usage.
func IsHelp(err error) bool {
	var flagsErr *flags.Error
	return errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp
}
