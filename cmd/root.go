package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/numtide/precisefmt/build"
	"github.com/numtide/precisefmt/cmd/format"
	_init "github.com/numtide/precisefmt/cmd/init"
	"github.com/numtide/precisefmt/config"
	"github.com/numtide/precisefmt/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRoot() (*cobra.Command, *stats.Stats) {
	var (
		precisefmtInit bool
		configFile     string
		completion     string
	)

	// create a viper instance for reading in config
	v := config.NewViper()

	// create a new stats instance
	statz := stats.New()

	// create out root command
	cmd := &cobra.Command{
		Use:     build.Name + " <paths...>",
		Short:   "Format only what changed",
		Long:    "Apply formatters to the regions of files which differ from a git revision, leaving the rest as is.",
		Version: build.Version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runE(v, &statz, cmd, args)
		},
	}

	// update version template
	cmd.SetVersionTemplate("precisefmt {{.Version}}")

	// completions are generated with --completion, which leaves the sub command name free to be used as a path
	cmd.CompletionOptions.DisableDefaultCmd = true

	// config flags are shared with sub commands
	pfs := cmd.PersistentFlags()

	// add our config flags to the command's flag set
	config.SetFlags(pfs)

	// add a couple of special flags which don't have a corresponding entry in precisefmt.toml
	pfs.StringVar(
		&configFile, "config-file", "",
		"Load the config file from the given path (defaults to searching upwards for precisefmt.toml or "+
			".precisefmt.toml).",
	)

	fs := cmd.Flags()

	fs.BoolVarP(
		&precisefmtInit, "init", "i", false,
		"Create a precisefmt.toml file in the current directory.",
	)
	fs.StringVar(
		&completion, "completion", "",
		"[bash|zsh|fish] Generate shell completion scripts for the specified shell.",
	)

	// bind our command's flags to viper
	if err := v.BindPFlags(pfs); err != nil {
		cobra.CheckErr(fmt.Errorf("failed to bind global config to viper: %w", err))
	}

	cmd.AddCommand(newResolve(v))

	return cmd, &statz
}

func runE(v *viper.Viper, statz *stats.Stats, cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	workingDir, err := filepath.Abs(v.GetString("working-dir"))
	if err != nil {
		return fmt.Errorf("failed to get absolute path for working directory: %w", err)
	}

	// check if we are running the init command
	if init, err := flags.GetBool("init"); err != nil {
		return fmt.Errorf("failed to read init flag: %w", err)
	} else if init {
		if err := _init.Run(workingDir); err != nil {
			return fmt.Errorf("failed to run init command: %w", err)
		}

		return nil
	}

	// check if we are generating completions
	if shell, err := flags.GetString("completion"); err != nil {
		return fmt.Errorf("failed to read completion flag: %w", err)
	} else if shell != "" {
		return generateShellCompletions(cmd, []string{shell})
	}

	if err = readConfig(v, cmd, workingDir); err != nil {
		return err
	}

	configureLogging(v)

	// format
	return format.Run(v, statz, cmd, args) //nolint:wrapcheck
}

// readConfig loads the config file, if there is one, into v.
func readConfig(v *viper.Viper, cmd *cobra.Command, workingDir string) error {
	// use the path specified by the flag
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return fmt.Errorf("failed to read config-file flag: %w", err)
	}

	// fallback to env
	if configFile == "" {
		configFile = os.Getenv("PRECISEFMT_CONFIG_FILE")
	}

	// search up from the working directory
	if configFile == "" {
		configFile, _, err = config.FindUp(workingDir, config.FileNames...)
		if errors.Is(err, config.ErrNotFound) {
			// without a config file we rely on defaults
			log.Debugf("no config file found, using defaults")

			return nil
		} else if err != nil {
			return fmt.Errorf("failed to find precisefmt config file: %w", err)
		}
	}

	log.Debugf("using config file: %s", configFile)

	// read in the config
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		cmd.SilenceUsage = true

		return fmt.Errorf("failed to read config file '%s': %w", configFile, err)
	}

	return nil
}

func configureLogging(v *viper.Viper) {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)

	if v.GetBool("quiet") {
		// if quiet, we only log errors
		log.SetLevel(log.ErrorLevel)
	} else {
		// otherwise, the verbose flag controls the log level
		switch v.GetInt("verbose") {
		case 0:
			log.SetLevel(log.WarnLevel)
		case 1:
			log.SetLevel(log.InfoLevel)
		default:
			log.SetLevel(log.DebugLevel)
		}
	}
}
