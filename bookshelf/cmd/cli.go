package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arthur-debert/bookshelf/bookshelf/dialog"
	"github.com/arthur-debert/bookshelf/bookshelf/library"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

var outputFormats = []string{"table", "json", "yaml"}

// CLI wires configuration, logging and the store to the cobra commands
type CLI struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	rootCmd   *cobra.Command
	viperInst *viper.Viper
	configErr error

	logger  *slog.Logger
	logFile io.Closer
	db      *store.DB
}

// NewCLI creates the command tree reading from in and writing to out
func NewCLI(in io.Reader, out, errOut io.Writer) *CLI {
	cli := &CLI{
		in:        in,
		out:       out,
		errOut:    errOut,
		viperInst: viper.New(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()
	return cli
}

// setupViperConfig configures environment variables and config files
func (cli *CLI) setupViperConfig() {
	v := cli.viperInst
	explicit := os.Getenv("BOOKSHELF_CONFIG")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("bookshelf")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bookshelf")
		v.AddConfigPath("/etc/bookshelf")
	}

	v.SetEnvPrefix("BOOKSHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data", defaultDataDir())
	v.SetDefault("format", "table")
	v.SetDefault("log-level", "warn")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			cli.configErr = err
		}
	}
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "bookshelf",
		Short: "Catalog books, persons and publishers",
		Long: heredoc.Doc(`
			Bookshelf keeps a personal library catalog in a directory of JSON
			files, one per table: books, persons and publishers.

			Configuration sources, in order of precedence:
			  1. Command line flags
			  2. Environment variables (BOOKSHELF_DATA, BOOKSHELF_FORMAT, ...)
			  3. A config file: BOOKSHELF_CONFIG, or bookshelf.yaml/bookshelf.json
			     in ., ~/.bookshelf or /etc/bookshelf

			Examples:
			  bookshelf ls books --filter author.name~eco --orderby -published
			  bookshelf show persons umberto-eco
			  bookshelf add books
			  bookshelf rm persons william-weaver --derefer-records
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.prepare(cmd)
		},
	}
	cli.rootCmd.SetIn(cli.in)
	cli.rootCmd.SetOut(cli.out)
	cli.rootCmd.SetErr(cli.errOut)
	cli.addGlobalFlags()
}

func (cli *CLI) addGlobalFlags() {
	flags := cli.rootCmd.PersistentFlags()
	flags.StringP("data", "d", "", "Data directory (default ~/.local/share/bookshelf)")
	flags.StringP("format", "f", "table", "Output format (table|json|yaml)")
	flags.BoolP("verbose", "v", false, "Also write log records to stderr")
	flags.String("log-level", "warn", "Log level (debug|info|warn|error)")
	flags.Bool("no-color", false, "Disable colored output")
}

func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.newListCommand(),
		cli.newShowCommand(),
		cli.newAddCommand(),
		cli.newEditCommand(),
		cli.newRemoveCommand(),
		cli.newDescribeCommand(),
		cli.newExportCommand(),
	)
}

// prepare binds flags, starts logging and validates global settings
func (cli *CLI) prepare(cmd *cobra.Command) error {
	if cli.configErr != nil {
		return NewConfigError("read configuration", cli.configErr.Error(),
			"Check the file named by BOOKSHELF_CONFIG")
	}
	if err := cli.viperInst.BindPFlags(cmd.Flags()); err != nil {
		return NewConfigError("bind flags", err.Error())
	}

	format := cli.viperInst.GetString("format")
	if !contains(outputFormats, format) {
		return NewConfigError("parse flags", fmt.Sprintf("unknown output format %q", format),
			"Use one of: "+strings.Join(outputFormats, ", "))
	}
	if cli.viperInst.GetBool("no-color") {
		color.NoColor = true
	}

	logger, closer, err := initLogging(cli.viperInst.GetString("log-level"), cli.viperInst.GetBool("verbose"), cli.errOut)
	if err != nil {
		return NewConfigError("initialize logging", err.Error())
	}
	cli.logger = logger
	cli.logFile = closer
	cli.logger.Debug("command started", "command", cmd.CommandPath(), "data", cli.viperInst.GetString("data"))
	return nil
}

// Execute runs the command line and releases the store and the log file
func (cli *CLI) Execute() error {
	err := cli.rootCmd.Execute()
	if cli.db != nil {
		_ = cli.db.Close()
	}
	if err != nil {
		cli.logger.Error("command failed", "error", err)
	}
	if cli.logFile != nil {
		_ = cli.logFile.Close()
	}
	return err
}

// env opens the store on first use
func (cli *CLI) env() (schema.Env, error) {
	if cli.db == nil {
		db, err := store.Open(cli.viperInst.GetString("data"), store.WithLogger(cli.logger))
		if err != nil {
			return schema.Env{}, err
		}
		cli.db = db
	}
	return schema.Env{DB: cli.db, Registry: library.NewRegistry()}, nil
}

// dialogContext creates an interactive session over the command's streams
func (cli *CLI) dialogContext(env schema.Env) *dialog.Context {
	plain := cli.viperInst.GetBool("no-color") || !dialog.IsTerminal(cli.out)
	return dialog.NewContext(cli.in, cli.out, env,
		dialog.WithPlainOutput(plain),
		dialog.WithLogger(cli.logger))
}

func (cli *CLI) format() string {
	return cli.viperInst.GetString("format")
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
