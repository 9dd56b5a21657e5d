package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rvishravars/citheater"
	"github.com/rvishravars/citheater/internal/config"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"github.com/rvishravars/citheater/internal/plumbing"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/rvishravars/citheater/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"
	progress "gopkg.in/cheggaaa/pb.v1"
)

// rootCmd runs the analyses over the repository lists.
var rootCmd = &cobra.Command{
	Use:   "citheater [flags] <repository list>...",
	Short: "Measure the CI theater in GitHub repositories.",
	Long: `Measures how superficially the repositories adopt continuous integration:
infrequent commits, slow builds, builds which stay broken for days, and missing tests or coverage.

Every argument is a repository list file (text or YAML), a builtin:<name> list or an owner/name slug.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runAnalyses,
}

var cmdlineFacts map[string]interface{}
var cmdlineDeployed map[string]*bool

func runAnalyses(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	getBool := func(name string) bool {
		value, err := flags.GetBool(name)
		if err != nil {
			panic(err)
		}
		return value
	}
	getString := func(name string) string {
		value, err := flags.GetString(name)
		if err != nil {
			panic(err)
		}
		return value
	}
	protobuf := getBool("pb")
	csvDir := getString("csv")
	disableStatus := getBool("quiet")
	failFast := getBool("fail-fast")
	dryRun := getBool("dry-run")

	cfg, err := loadConfig(cmd, map[string]string{"workers": "workers", "store.dsn": "store"})
	if err != nil {
		return err
	}
	logger := core.NewLoggerWithConfig(cfg.LogConfig())
	repos, err := repolist.Resolve(args)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		return errors.New("the repository lists are empty")
	}

	pipeline := citheater.NewPipeline()
	var deployed []citheater.LeafPipelineItem
	for _, leaf := range citheater.Registry.GetLeaves() {
		if valPtr := cmdlineDeployed[leaf.Name()]; valPtr != nil && *valPtr {
			pipeline.DeployItem(leaf)
			deployed = append(deployed, leaf)
		}
	}
	if len(deployed) == 0 {
		return errors.New("no analysis was selected, see --help for the analysis targets")
	}

	cache, closeCache, err := openHTTPCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	var store *storage.Store
	if cfg.Store.DSN != "" && !dryRun {
		if store, err = storage.Open(cfg.Store.DSN); err != nil {
			return err
		}
		defer store.Close()
	}
	client := github.NewClient(cfg.ClientOptions(cache, logger))
	cmdlineFacts[citheater.ConfigLogger] = logger
	cmdlineFacts[citheater.FactGitHubClient] = client
	cmdlineFacts[citheater.FactGitHubToken] = cfg.GitHub.Token
	cmdlineFacts[citheater.ConfigPipelineWorkers] = cfg.Workers
	cmdlineFacts[citheater.ConfigPipelineFailFast] = failFast
	if !flags.Changed("checkout-dir") && cfg.Cache.Dir != "" {
		cmdlineFacts[plumbing.ConfigCheckoutDirectory] = filepath.Join(cfg.Cache.Dir, "checkouts")
	}

	var bar *progress.ProgressBar
	if !disableStatus {
		pipeline.OnProgress = func(step, length int, action string) {
			if bar == nil {
				bar = progress.New(length)
				bar.Callback = func(msg string) {
					os.Stderr.WriteString("\033[2K\r" + msg)
				}
				bar.NotPrint = true
				bar.ShowPercent = false
				bar.ShowSpeed = false
				bar.SetMaxWidth(80).Start()
			}
			if action == citheater.MessageFinalize {
				bar.Finish()
				fmt.Fprint(os.Stderr, "\033[2K\rfinalizing...")
			} else {
				bar.Set(step).Postfix(" [" + action + "] ")
			}
		}
	}

	if err = pipeline.Initialize(cmdlineFacts); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	results, err := pipeline.Run(ctx, repos)
	if err != nil {
		return errors.Wrap(err, "failed to run the pipeline")
	}
	if !disableStatus {
		fmt.Fprint(os.Stderr, "\033[2K\r")
		// if not a terminal, the user will not see the output, so show the status
		if !terminal.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprint(os.Stderr, "writing...\r")
		}
	}
	runID := ""
	if store != nil {
		if runID, err = storeResults(store, deployed, results); err != nil {
			return err
		}
		logger.Infof("saved run %s", runID)
	}
	if csvDir != "" {
		if err = writeCSV(csvDir, deployed, results); err != nil {
			return err
		}
	}
	if protobuf {
		return protobufResults(os.Stdout, deployed, results)
	}
	return printResults(os.Stdout, runID, deployed, results)
}

// loadConfig reads the configuration taking --config, --env-file and the bound flags into account.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	flags := cmd.Flags()
	loader := config.NewLoader()
	if path, _ := flags.GetString("config"); path != "" {
		loader.SetConfigFile(path)
	}
	if flags.Changed("env-file") {
		path, _ := flags.GetString("env-file")
		loader.SetEnvFile(path)
	}
	if err := loader.BindFlags(flags, bindings); err != nil {
		return nil, err
	}
	return loader.Load()
}

// openHTTPCache returns the persistent ETag cache if cache.http is on, the in-memory one otherwise.
func openHTTPCache(cfg *config.Config) (github.Cache, func(), error) {
	if !cfg.Cache.HTTP {
		return github.NewMemoryCache(), func() {}, nil
	}
	if err := os.MkdirAll(cfg.Cache.Dir, 0755); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to create %s", cfg.Cache.Dir)
	}
	store, err := storage.Open(cfg.HTTPCachePath())
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// openStore connects to the database where the runs are saved.
func openStore(cmd *cobra.Command) (*storage.Store, error) {
	cfg, err := loadConfig(cmd, map[string]string{"store.dsn": "store"})
	if err != nil {
		return nil, err
	}
	if cfg.Store.DSN == "" {
		return nil, errors.New("no database is configured: set --store or store.dsn")
	}
	return storage.Open(cfg.Store.DSN)
}

// versionCmd prints the output format version and the Git commit hash
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information and exit.",
	Long:  ``,
	Args:  cobra.MaximumNArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %d\nGit:     %s\n",
			citheater.BinaryVersion, citheater.BinaryGitHash)
	},
}

func init() {
	persistentFlags := rootCmd.PersistentFlags()
	persistentFlags.String("config", "", "Path to the YAML configuration file. By default, "+
		"citheater.yaml is looked up in ./, $XDG_CONFIG_HOME/citheater and ~/.config/citheater.")
	persistentFlags.String("env-file", ".env", "Path to the dotenv file which is loaded "+
		"before reading the environment variables.")
	persistentFlags.String("store", "", "Database where the runs are saved: an SQLite file "+
		"path or a postgres:// URL. Overrides store.dsn.")
	err := rootCmd.MarkPersistentFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(err)
	}
	rootFlags := rootCmd.Flags()
	rootFlags.Bool("pb", false, "The output format will be Protocol Buffers instead of YAML.")
	rootFlags.String("csv", "", "Also write each analysis to <dir>/<analysis flag>.csv.")
	err = rootCmd.MarkFlagDirname("csv")
	if err != nil {
		panic(err)
	}
	rootFlags.Bool("quiet", !terminal.IsTerminal(int(os.Stdin.Fd())),
		"Do not print status updates to stderr.")
	rootFlags.Int("workers", core.DefaultPipelineWorkers,
		"Number of repositories analysed in parallel. Overrides workers.")
	rootFlags.Bool("fail-fast", false, "Stop on the first repository which fails.")
	cmdlineFacts, cmdlineDeployed = citheater.Registry.AddFlags(rootFlags)
	rootCmd.SetUsageFunc(formatUsage)
	// the subcommands must not inherit formatUsage
	for _, cmd := range []*cobra.Command{versionCmd, listsCmd, runsCmd, reportCmd} {
		cmd.SetUsageFunc(cmd.UsageFunc())
		rootCmd.AddCommand(cmd)
	}
}
