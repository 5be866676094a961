// Command dlua expands the macros of a Lua source tree into an export
// directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dlua-lang/dlua/internal/cli"
	"github.com/dlua-lang/dlua/internal/compiler"
	"github.com/dlua-lang/dlua/internal/watch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	cli.HandleError(err, nil)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dlua <root> <export>",
		Short: "Expand dlua macros into plain Lua",
		Long: `dlua walks a Lua source tree, follows static require calls and expands
the macros declared in -- @macro comments. Only files affected by a change
since the last run are rebuilt; the cache lives in <export>/.dlua_cache.json.`,
		Args:          cobra.ExactArgs(2),
		RunE:          runBuild,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to the configuration file (default ./"+cli.ConfigFileName+")")
	pf.String("level", "", "Active compile level (overrides config)")
	pf.Bool("sugar", false, "Rewrite += -= *= /= before expansion")
	pf.BoolP("verbose", "v", false, "Print phase timings")
	pf.Bool("debug", false, "Print debug output")
	pf.Int("workers", 0, "Parallel workers (default: number of CPUs)")

	statusCmd := &cobra.Command{
		Use:   "status <root> <export>",
		Short: "Show changed and affected files without building",
		Args:  cobra.ExactArgs(2),
		RunE:  runStatus,
	}

	watchCmd := &cobra.Command{
		Use:   "watch <root> <export>",
		Short: "Rebuild whenever a source file changes",
		Args:  cobra.ExactArgs(2),
		RunE:  runWatch,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default " + cli.ConfigFileName + " in the current directory",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			cli.PrintVersion(cmd.OutOrStdout(), "dlua", asJSON)
			return nil
		},
	}
	versionCmd.Flags().Bool("json", false, "Print machine-readable version information")

	rootCmd.AddCommand(statusCmd, watchCmd, initCmd, versionCmd)
	return rootCmd
}

// setup loads the configuration, applies flag overrides and returns the
// compiler options for root and export.
func setup(cmd *cobra.Command, root, export string) (compiler.Options, *cli.Logger, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	if path == "" {
		path = cli.ConfigFileName
	}
	cfg, err := cli.LoadConfig(path)
	if err != nil {
		return compiler.Options{}, nil, err
	}

	if flags.Changed("level") {
		cfg.Level, _ = flags.GetString("level")
	}
	if flags.Changed("sugar") {
		cfg.CompoundAssign, _ = flags.GetBool("sugar")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}

	logger := cli.NewLogger(cfg.Verbose || cfg.Debug, cfg.Debug)
	logger.Debug("config: %s (level %s, require paths %v)", path, cfg.Level, cfg.RequirePaths)

	opts, err := compiler.OptionsFromConfig(cfg, root, export, logger)
	if err != nil {
		return compiler.Options{}, nil, err
	}
	opts.Workers, _ = flags.GetInt("workers")
	return opts, logger, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts, logger, err := setup(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	sum, err := compiler.New(opts).Run(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("Done: %s", sum)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	opts, _, err := setup(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	r, err := compiler.Status(cmd.Context(), opts)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d files, %d changed, %d affected\n", len(r.Files), len(r.Changed), len(r.Affected))
	for _, f := range r.Affected {
		mark := " "
		for _, c := range r.Changed {
			if c == f {
				mark = "*"
				break
			}
		}
		fmt.Fprintf(w, "  %s %s\n", mark, f)
	}
	for _, u := range r.Unresolved {
		fmt.Fprintf(w, "unresolved require: %s\n", u)
	}
	for _, c := range r.Cycles {
		fmt.Fprintf(w, "require cycle: %s\n", strings.Join(c, " -> "))
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	opts, logger, err := setup(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	c := compiler.New(opts)
	w, err := watch.New(opts.Root, opts.ExportDir, func(ctx context.Context) error {
		sum, err := c.Run(ctx)
		if err == nil {
			logger.Info("Rebuilt: %s", sum)
		}
		return err
	}, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (Ctrl-C to stop)\n", opts.Root)
	return w.Run(cmd.Context())
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = cli.ConfigFileName
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := cli.DefaultConfig().SaveConfig(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
