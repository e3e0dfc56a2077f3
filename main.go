package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"libcat/internal/browser"
	"libcat/internal/dblib"
	"libcat/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "libcat",
	Short: "libcat manages a library catalog database",
	Long: `libcat browses and edits the tables of a library catalog database
(libraries, themes, books, readers, subscriptions, employees) and runs
its reports.

Without a subcommand the terminal shell is opened.

Examples:
  libcat -d library -U librarian
  libcat --driver sqlite3 -d catalog.db list books --search-col author --search sagan
  libcat report overdue-loans --param sort=reader`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runShell,
}

var configFile string

func init() {
	flags := rootCmd.PersistentFlags()
	// -h is the host, as in psql, so help is long-only.
	flags.BoolP("help", "", false, "help for libcat")
	flags.StringP("database", "d", "", "Database name or SQLite file")
	flags.StringP("host", "h", "", "Database host")
	flags.StringP("port", "p", "", "Database port")
	flags.StringP("username", "U", "", "Database username")
	flags.StringP("password", "W", "", "Database password")
	flags.String("driver", "", "Driver: postgres, pgx, mysql or sqlite3")
	flags.String("sslmode", "", "PostgreSQL sslmode")
	flags.String("url", "", "Connection URL, overrides the individual settings")
	flags.String("catalog", "", "Catalog definition YAML file")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/libcat/config.yaml)")

	listCmd.Flags().String("search-col", "", "Column to search")
	listCmd.Flags().String("search", "", "Text the search column must contain")
	listCmd.Flags().String("sort", "", "Column to sort by")
	listCmd.Flags().Bool("desc", false, "Sort descending")

	reportCmd.Flags().StringToStringP("param", "P", nil, "Report parameter as key=value")

	rootCmd.AddCommand(tablesCmd, columnsCmd, listCmd, reportCmd, telemetryCmd)
}

// withApp opens the application for one command and closes it when done.
func withApp(cmd *cobra.Command, fn func(*App) error) error {
	cfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	app, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func runShell(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(app *App) error {
		recordNavigation("shell", "start")
		p := tea.NewProgram(NewModel(cmd.Context(), app), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("error running shell: %w", err)
		}
		return nil
	})
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the catalog tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		cat, err := cfg.LoadCatalog()
		if err != nil {
			return err
		}
		rows := make([][]any, 0, len(cat.Names()))
		for _, name := range cat.Names() {
			rows = append(rows, []any{name, cat.Title(name)})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"table", "title"}, rows))
		return nil
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns <table>",
	Short: "Show a table's columns and lookups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			t, err := app.Catalog.Resolve(cmd.Context(), app.Gateway, args[0])
			if err != nil {
				return err
			}
			rows := make([][]any, 0, len(t.Columns))
			for i, col := range t.Columns {
				var role, lookup any
				if i == 0 {
					role = "primary key"
				}
				if ref, ok := t.Reference(col); ok {
					lookup = fmt.Sprintf("%s.%s (%s)", ref.Table, ref.KeyColumn, ref.DisplayColumn)
				}
				rows = append(rows, []any{col, role, lookup})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"column", "role", "lookup"}, rows))
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list <table>",
	Short: "Print a table's rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			b, err := browser.Open(cmd.Context(), app.Gateway, app.Catalog, args[0])
			if err != nil {
				return err
			}
			if err := b.Load(cmd.Context(), listFilter(cmd, b.Table())); err != nil {
				return err
			}
			printRows(cmd.OutOrStdout(), b.Columns(), b.Rows())
			return nil
		})
	},
}

// listFilter overlays the list flags on the table's default filter.
func listFilter(cmd *cobra.Command, t *dblib.Table) dblib.FilterSort {
	fs := dblib.DefaultFilterSort(t)
	flags := cmd.Flags()
	if v, _ := flags.GetString("search-col"); v != "" {
		fs.SearchColumn = v
	}
	if v, _ := flags.GetString("search"); v != "" {
		fs.Search = v
	}
	if v, _ := flags.GetString("sort"); v != "" {
		fs.SortColumn = v
	}
	if desc, _ := flags.GetBool("desc"); desc {
		fs.Direction = dblib.Desc
	}
	return fs
}

var reportCmd = &cobra.Command{
	Use:   "report <name>",
	Short: "Run a report",
	Long:  "Run a report. Available reports:\n\n" + reportUsage(),
	Args:  cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, r := range report.All() {
			names = append(names, r.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := cmd.Flags().GetStringToString("param")
		if err != nil {
			return err
		}
		return withApp(cmd, func(app *App) error {
			res, err := app.Reports.Run(cmd.Context(), args[0], report.Params(params))
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

func reportUsage() string {
	var b strings.Builder
	for _, r := range report.All() {
		fmt.Fprintf(&b, "  %s  %s\n", r.Name, r.Title)
		for _, p := range r.Params {
			line := fmt.Sprintf("      %s: %s", p.Name, p.Label)
			if len(p.Choices) > 0 {
				choices := append([]string(nil), p.Choices...)
				sort.Strings(choices)
				line += " [" + strings.Join(choices, "|") + "]"
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

var telemetryCmd = &cobra.Command{
	Use:       "telemetry [on|off]",
	Short:     "Show or change error reporting",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := LoadSettings()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			settings.TelemetryEnabled = args[0] == "on"
			settings.FirstRunComplete = true
			if err := SaveSettings(settings); err != nil {
				return err
			}
		}
		state := "off"
		if settings.TelemetryEnabled {
			state = "on"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "telemetry is %s\n", state)
		return nil
	},
}
