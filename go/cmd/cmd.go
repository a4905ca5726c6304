package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/boot"
	"github.com/lunixbochs/plashload/go/console"
	"github.com/lunixbochs/plashload/go/models"
)

// PlashCmd holds the flags and configuration shared by every subcommand.
type PlashCmd struct {
	Config  *models.Config
	Console *console.Console
	Flags   *flag.FlagSet

	// positional argument synopsis for usage
	Args    string
	Example string

	verbose    *bool
	color      *bool
	trace      *int
	configPath *string
	layout     models.Layout
}

func NewPlashCmd(args, example string) *PlashCmd {
	fs := flag.NewFlagSet("cli", flag.ExitOnError)
	c := &PlashCmd{Flags: fs, Args: args, Example: example, layout: models.DefaultLayout}
	c.verbose = fs.Bool("v", false, "verbose output")
	c.color = fs.Bool("color", false, "color diagnostics when stdout is a terminal")
	c.trace = fs.Int("trace", 0, "loader trace level (glog verbosity, logs to stderr)")
	c.configPath = fs.String("config", "", "config file (default: search for "+models.ConfigFile+")")
	fs.Var(&c.layout.ExecZoneStart, "zone", "execution zone base address")
	fs.Var(&c.layout.MaxAppSize, "size", "execution zone capacity")
	fs.Var(&c.layout.PlashStart, "store", "image store base address")
	fs.Usage = c.Usage
	return c
}

func (c *PlashCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] %s\n\nOptions:\n", os.Args[0], c.Args)
	var flags []*flag.Flag
	c.Flags.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
	PrintFlags(os.Stderr, flags)
	if c.Example != "" {
		fmt.Fprintf(os.Stderr, "\nExample:\n  %s %s\n", os.Args[0], c.Example)
	}
}

// Parse parses argv, builds the configuration and returns the positional
// arguments. Flags override the config file, which overrides the defaults.
func (c *PlashCmd) Parse(argv []string) []string {
	fs := c.Flags
	fs.Parse(argv[1:])

	config, err := models.LoadConfig(*c.configPath)
	if err != nil {
		c.PrintError(err)
		os.Exit(1)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			config.Verbose = *c.verbose
		case "color":
			config.Color = *c.color
		case "zone":
			config.ExecZoneStart = c.layout.ExecZoneStart
		case "size":
			config.MaxAppSize = c.layout.MaxAppSize
		case "store":
			config.PlashStart = c.layout.PlashStart
		}
	})
	if *c.trace > 0 {
		flag.Set("logtostderr", "true")
		flag.Set("v", strconv.Itoa(*c.trace))
	}
	c.Config = config
	c.Console = console.Stdout(config.Color)
	return fs.Args()
}

// Diag is where diagnostics go: the configured output or stderr.
func (c *PlashCmd) Diag() io.Writer {
	if c.Config != nil && c.Config.Output != nil {
		return c.Config.Output
	}
	return os.Stderr
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints an error, and a stacktrace if available.
func (c *PlashCmd) PrintError(err error) {
	w := c.Diag()
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(w, "Error: %s\n", err)
	if err, ok := err.(stackTracer); ok {
		// parse full path and method name for each stack frame
		var frames [][]string
		for _, f := range err.StackTrace() {
			fullpath := ""
			fileline := fmt.Sprintf("%s:%d", f, f)
			method := fmt.Sprintf("%n", f)

			frame := fmt.Sprintf("%+s", f)
			tmp := strings.SplitN(frame, "\n", 3)
			if len(tmp) == 2 {
				pathsplit := strings.Split(tmp[0], "/")
				method = pathsplit[len(pathsplit)-1]
				fullpath = strings.TrimSpace(tmp[1])
			}
			frames = append(frames, []string{fullpath, fileline, method})
			if method == "main.main" {
				break
			}
		}
		widths := make([]int, 2)
		for _, f := range frames {
			for i := range widths {
				if len(f[i]) > widths[i] {
					widths[i] = len(f[i])
				}
			}
		}
		for _, f := range frames {
			for i := range widths {
				if widths[i] > 0 {
					pad := strings.Repeat(" ", widths[i]-len(f[i]))
					fmt.Fprintf(w, "%s%s | ", f[i], pad)
				}
			}
			fmt.Fprintf(w, "%s()\n", f[2])
		}
	}
}

// Exit halts with err's diagnostic and exit code. Verbose mode adds the
// stack trace.
func (c *PlashCmd) Exit(err error) {
	code := boot.Halt(c.Console, err)
	if code != 0 && c.Config != nil && c.Config.Verbose {
		if _, ok := errors.Cause(err).(models.ExitStatus); !ok {
			c.PrintError(err)
		}
	}
	glog.Flush()
	os.Exit(code)
}
