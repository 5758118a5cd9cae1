// Command weather is the CLI surface for the weather-history archive
// manager described in §6: store-directory location, output format, and
// deployment mode are flags; every command's actual work is delegated to
// internal/weatherapp.
//
// Grounded on the teacher's cli.RootCmd (Cobra root command, PersistentFlags
// bound through Viper, cobra.OnInitialize for config-file discovery),
// adapted from one HTTP-server command into a subcommand tree.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rerupp/fsweather/internal/cliformat"
	"github.com/rerupp/fsweather/internal/config"
	"github.com/rerupp/fsweather/internal/fetch"
	"github.com/rerupp/fsweather/internal/logging"
	"github.com/rerupp/fsweather/internal/model"
	"github.com/rerupp/fsweather/internal/weatherapp"
)

var (
	flagDirectory string
	flagDebug     bool
	flagVerbose   int
	flagCSV       bool
	flagJSON      bool
	flagPretty    bool
)

// envCfg holds the environment-sourced defaults (WEATHER_DATA,
// WEATHER_THREADS, WEATHER_DEPLOYMENT, WEATHER_LOG_LEVEL,
// WEATHER_LOG_JSON); flags above override it per invocation.
var envCfg config.StoreConfig

func main() {
	if err := rootCmd.Execute(); err != nil {
		cliformat.Fatal(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "weather",
	Short: "manage a per-location weather-history archive and its relational index",
}

func init() {
	envCfg = config.Load("WEATHER")
	rootCmd.PersistentFlags().StringVar(&flagDirectory, "directory", envCfg.Directory, "store directory (defaults to WEATHER_DATA)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "db", false, "enable verbose index/query logging")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity")
	rootCmd.PersistentFlags().BoolVar(&flagCSV, "csv", false, "render output as CSV")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "render output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", false, "render output as an aligned table (default)")
	viper.BindPFlag("directory", rootCmd.PersistentFlags().Lookup("directory"))

	rootCmd.AddCommand(llCmd, lhCmd, lsCmd, rhCmd, ahCmd, adminCmd)
	adminCmd.AddCommand(adminInitCmd, adminDropCmd, adminMigrateCmd, adminReloadCmd, adminShowCmd, adminUSCitiesCmd)
	adminUSCitiesCmd.AddCommand(usCitiesLoadCmd, usCitiesDeleteCmd, usCitiesInfoCmd)
}

func newLogger() *logging.Logger {
	cfg := logging.DefaultConfig("weather")
	cfg.JSON = envCfg.LogJSON
	if lvl := logging.Level(envCfg.LogLevel); lvl != "" {
		cfg.Level = lvl
	}
	if flagDebug || flagVerbose > 0 {
		cfg.Level = logging.LevelDebug
	}
	return logging.NewLogger(logging.New(cfg), nil)
}

// defaultDeployment resolves WEATHER_DEPLOYMENT ("hybrid" or "normalized")
// into a model.Deployment for commands that don't take an explicit
// --normalized flag of their own.
func defaultDeployment() model.Deployment {
	if envCfg.Deployment == string(model.Normalized) {
		return model.Normalized
	}
	return model.Hybrid
}

func openApp(deployment model.Deployment) (*weatherapp.App, error) {
	return weatherapp.Open(flagDirectory, deployment, newLogger())
}

func outputMode() cliformat.Mode {
	return cliformat.ModeFromFlags(flagCSV, flagJSON, flagPretty)
}

var llCmd = &cobra.Command{
	Use:   "ll [patterns...]",
	Short: "list registered entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		entities, err := app.ListEntities(args)
		if err != nil {
			return err
		}
		header := []string{"alias", "name", "latitude", "longitude", "tz"}
		rows := make([][]string, 0, len(entities))
		for _, e := range entities {
			rows = append(rows, []string{
				e.Alias, e.Name, e.Attrs[model.AttrLatitude], e.Attrs[model.AttrLongitude], e.Attrs[model.AttrTZ],
			})
		}
		return cliformat.Table(os.Stdout, outputMode(), header, rows)
	},
}

var lhCmd = &cobra.Command{
	Use:   "lh [patterns...]",
	Short: "list history date ranges per entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		dates, err := app.ListHistoryDates(args)
		if err != nil {
			return err
		}
		header := []string{"alias", "from", "thru"}
		var rows [][]string
		for _, d := range dates {
			if len(d.Ranges) == 0 {
				rows = append(rows, []string{d.Entity.Alias, "", ""})
				continue
			}
			for _, r := range d.Ranges {
				rows = append(rows, []string{d.Entity.Alias, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02")})
			}
		}
		return cliformat.Table(os.Stdout, outputMode(), header, rows)
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [patterns...]",
	Short: "summarize history counts and sizes per entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		summaries, err := app.Summaries(args)
		if err != nil {
			return err
		}
		header := []string{"alias", "count", "raw_size", "store_size", "db_size"}
		rows := make([][]string, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, []string{
				s.Entity.Alias,
				fmt.Sprint(s.Count), fmt.Sprint(s.RawSize), fmt.Sprint(s.OverallSize), fmt.Sprint(s.StoreSize),
			})
		}
		return cliformat.Table(os.Stdout, outputMode(), header, rows)
	},
}

var rhCmd = &cobra.Command{
	Use:   "rh <entity> <from> [thru]",
	Short: "report daily history for one entity",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := time.Parse("2006-01-02", args[1])
		if err != nil {
			return err
		}
		thru := from
		if len(args) == 3 {
			thru, err = time.Parse("2006-01-02", args[2])
			if err != nil {
				return err
			}
		}

		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		records, err := app.DailyHistory(args[0], from, thru)
		if err != nil {
			return err
		}
		header := []string{"date", "size", "store_size"}
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{r.Key, fmt.Sprint(r.Size), fmt.Sprint(r.StoreSize)})
		}
		return cliformat.Table(os.Stdout, outputMode(), header, rows)
	},
}

var ahCmd = &cobra.Command{
	Use:   "ah <entity> <from> [thru]",
	Short: "fetch and append weather histories for one entity",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := time.Parse("2006-01-02", args[1])
		if err != nil {
			return err
		}
		thru := from
		if len(args) == 3 {
			thru, err = time.Parse("2006-01-02", args[2])
			if err != nil {
				return err
			}
		}

		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		added, err := app.AppendHistories(context.Background(), args[0], from, thru, fetch.NoopFetcher{})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d histories appended\n", added)
		return nil
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "administrative store-directory operations",
}

var (
	adminDrop       bool
	adminLoad       bool
	adminThreads    int
	adminNormalized bool
)

var adminInitCmd = &cobra.Command{
	Use:   "init",
	Short: "create or reset the store directory's index",
	RunE: func(cmd *cobra.Command, args []string) error {
		deployment := model.Hybrid
		if adminNormalized {
			deployment = model.Normalized
		}
		result, err := weatherapp.AdminInit(flagDirectory, weatherapp.InitOptions{
			Drop: adminDrop, Load: adminLoad, Threads: adminThreads, Deployment: deployment,
		}, newLogger())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d histories loaded\n", result.Inserted)
		return nil
	},
}

var adminDeleteFile bool

var adminDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "drop the index schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return weatherapp.AdminDrop(flagDirectory, defaultDeployment(), adminDeleteFile)
	},
}

var (
	adminInto   string
	adminCreate bool
	adminRetain bool
)

var adminMigrateCmd = &cobra.Command{
	Use:   "migrate [patterns...]",
	Short: "copy matching entities and their archives into another store directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := weatherapp.AdminMigrate(flagDirectory, adminInto, adminCreate, adminRetain, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d entities migrated\n", count)
		return nil
	},
}

var adminReloadCmd = &cobra.Command{
	Use:   "reload [patterns...]",
	Short: "rebuild matching entities' index rows from their archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		counts, err := app.AdminReload(args)
		if err != nil {
			return err
		}
		for alias, n := range counts {
			fmt.Fprintf(os.Stdout, "%s: %d rows\n", alias, n)
		}
		return nil
	},
}

var adminShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the store directory's configuration summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.AdminShow()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "directory:  %s\n", report.Directory)
		fmt.Fprintf(os.Stdout, "deployment: %s\n", report.Deployment)
		fmt.Fprintf(os.Stdout, "index size: %d bytes\n", report.IndexBytes)
		fmt.Fprintf(os.Stdout, "entities:   %d\n", report.Entities)
		return nil
	},
}

var adminUSCitiesCmd = &cobra.Command{
	Use:   "uscities",
	Short: "manage the bulk-loaded US cities gazetteer entries",
}

var usCitiesFile string

var usCitiesLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "load entities from a US cities CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.USCitiesLoad(usCitiesFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d cities loaded\n", n)
		return nil
	},
}

var usCitiesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "remove every gazetteer-loaded entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.USCitiesDelete()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d cities removed\n", n)
		return nil
	},
}

var usCitiesInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "report how many registered entities came from the gazetteer",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(defaultDeployment())
		if err != nil {
			return err
		}
		defer app.Close()

		loaded, total, err := app.USCitiesInfo()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d of %d registered entities are gazetteer-loaded\n", loaded, total)
		return nil
	},
}

func init() {
	adminInitCmd.Flags().BoolVar(&adminDrop, "drop", false, "drop the existing schema before initializing")
	adminInitCmd.Flags().BoolVar(&adminLoad, "load", false, "ingest every registered entity's archive")
	adminInitCmd.Flags().IntVar(&adminThreads, "threads", envCfg.Threads, "ingest worker pool size (max 16)")
	adminInitCmd.Flags().BoolVar(&adminNormalized, "normalized", envCfg.Deployment == string(model.Normalized), "use Normalized deployment instead of the Hybrid default")

	adminDropCmd.Flags().BoolVar(&adminDeleteFile, "delete", false, "also delete the index file from disk")

	adminMigrateCmd.Flags().StringVar(&adminInto, "into", "", "destination store directory")
	adminMigrateCmd.MarkFlagRequired("into")
	adminMigrateCmd.Flags().BoolVar(&adminCreate, "create", false, "create the destination directory if missing")
	adminMigrateCmd.Flags().BoolVar(&adminRetain, "retain", false, "keep migrated entities in the source registry too")

	usCitiesLoadCmd.Flags().StringVar(&usCitiesFile, "file", "", "CSV file of name,alias,latitude,longitude,tz rows")
	usCitiesLoadCmd.MarkFlagRequired("file")
}
