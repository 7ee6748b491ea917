package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/docgraph/internal/config"
	"github.com/rohankatakam/docgraph/internal/errors"
	"github.com/rohankatakam/docgraph/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logging.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(os.Stderr, err, verbose))
	}
}

// reportError prints err and returns the exit code: 2 for fatal errors such as bad configuration, 1 otherwise.
// With detailed set, structured errors are printed with their context.
func reportError(w io.Writer, err error, detailed bool) int {
	var appErr *errors.Error
	if detailed && stderrors.As(err, &appErr) {
		fmt.Fprint(w, appErr.DetailedString())
	} else {
		fmt.Fprintf(w, "Error: %v\n", err)
	}

	if errors.IsFatal(err) {
		return 2
	}
	return 1
}

var rootCmd = &cobra.Command{
	Use:   "docgraph",
	Short: "docgraph - replay document change streams into a Neo4j property graph",
	Long: `docgraph translates document inserts, updates and deletes into Cypher,
commits them to Neo4j and registers new nodes with the spatial extension.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		// Logs go to stderr so command output stays machine readable
		logger, err = logging.New(logging.Config{
			Level:      level,
			OutputFile: cfg.Logging.File,
			JSONFormat: cfg.Logging.JSON,
			Output:     os.Stderr,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .docgraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`docgraph {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(lastCmd)
	rootCmd.AddCommand(layerCmd)
	rootCmd.AddCommand(deadLettersCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}
