package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fiscalia/internal/app"
	"fiscalia/internal/config"
	"fiscalia/internal/db"
	"fiscalia/internal/domain"
	"fiscalia/internal/engine"
	"fiscalia/internal/errs"
	"fiscalia/internal/export"
	"fiscalia/internal/logger"
	"fiscalia/internal/repo"
	"fiscalia/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fsc",
	Short: "Fiscalia case tracking CLI",
	Long: `fsc tracks cases assigned to fiscales and records every reassignment.
- Workspace: a directory holding fiscalia.yml and the .fiscalia database.
- Fiscalias: offices declared in fiscalia.yml; fiscales belong to one of them.
- Casos: created as Pendiente or Cerrado, moved through EnProceso with 'fsc caso status'.
- Reassignment: 'fsc caso reassign' moves a case and appends an entry to the audit log ('fsc log list').
- Statistics: 'fsc stats' counts cases per fiscal and status, always from current data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return initLogging(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		if e, ok := errs.As(err); ok && e.Kind != errs.KindStorage {
			fmt.Fprintf(os.Stderr, "error: %s (%s)\n", e.Message, e.Code)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FISCALIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (json, console)")
	rootCmd.PersistentFlags().Int("busy-timeout", 5000, "SQLite busy timeout in milliseconds")
	rootCmd.PersistentFlags().Bool("allow-same-fiscal", false, "accept reassigning a case to its current fiscal")
	for _, name := range []string{"workspace", "json", "log-level", "log-format", "busy-timeout", "allow-same-fiscal"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(fiscaliaCmd())
	rootCmd.AddCommand(fiscalCmd())
	rootCmd.AddCommand(casoCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// initLogging sets up the global logger. One-shot commands stay quiet below
// warn unless asked; serve follows the config file.
func initLogging(cmd *cobra.Command) error {
	level := viper.GetString("log-level")
	format := viper.GetString("log-format")
	if cfg, err := config.LoadOptional(viper.GetString("workspace")); err == nil {
		if level == "" && cmd.Name() == "serve" {
			level = cfg.Log.Level
		}
		if format == "" {
			format = cfg.Log.Format
		}
	}
	if level == "" {
		level = "warn"
	}
	return logger.Init(level, format)
}

// loadConfig reads fiscalia.yml and overlays flags and FISCALIA_* variables.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if viper.IsSet("allow-same-fiscal") {
		cfg.Reassignment.AllowSameFiscal = viper.GetBool("allow-same-fiscal")
	}
	return cfg, nil
}

func fiscaliaCmd() *cobra.Command {
	f := &cobra.Command{Use: "fiscalia", Short: "Inspect fiscalias"}
	f.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured fiscalias",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListFiscalias(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Nombre"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Name})
				}
				tw.Render()
				return nil
			})
		},
	})
	return f
}

func fiscalCmd() *cobra.Command {
	f := &cobra.Command{Use: "fiscal", Short: "Manage fiscales"}
	f.AddCommand(fiscalRegisterCmd())
	f.AddCommand(fiscalListCmd())
	f.AddCommand(fiscalShowCmd())
	return f
}

func fiscalRegisterCmd() *cobra.Command {
	var req engine.RegisterFiscalRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a fiscal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.RegisterFiscal(ctx, req)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(f)
				}
				fmt.Printf("Fiscal #%d %s registrado\n", f.ID, f.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "nombre", "", "full name")
	cmd.Flags().StringVar(&req.Email, "correo", "", "email address")
	cmd.Flags().Int64Var(&req.FiscaliaID, "fiscalia", 0, "fiscalia id")
	return cmd
}

func fiscalListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fiscales",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListFiscales(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Nombre", "Correo", "Fiscalia"})
				for _, f := range items {
					tw.AppendRow(table.Row{f.ID, f.Name, f.Email, f.FiscaliaID})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func fiscalShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a fiscal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "fiscal")
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.GetFiscal(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
}

func casoCmd() *cobra.Command {
	c := &cobra.Command{Use: "caso", Short: "Manage cases"}
	c.AddCommand(casoCreateCmd())
	c.AddCommand(casoListCmd())
	c.AddCommand(casoShowCmd())
	c.AddCommand(casoStatusCmd())
	c.AddCommand(casoReassignCmd())
	c.AddCommand(casoExportCmd())
	return c
}

func casoCreateCmd() *cobra.Command {
	var req engine.CreateCaseRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a case",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCase(ctx, req)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				fmt.Printf("Caso #%d creado (%s)\n", c.ID, c.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Description, "descripcion", "", "case description")
	cmd.Flags().StringVar(&req.Status, "estado", string(domain.StatusPending), "initial status (Pendiente or Cerrado)")
	cmd.Flags().Int64Var(&req.FiscalID, "fiscal", 0, "assigned fiscal id")
	return cmd
}

func casoListCmd() *cobra.Command {
	var fiscalID int64
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.FilterCases(ctx, repo.CaseFilters{FiscalID: fiscalID, Status: domain.CaseStatus(status)})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				return export.Cases(os.Stdout, items, export.FormatText)
			})
		},
	}
	cmd.Flags().Int64Var(&fiscalID, "fiscal", 0, "fiscal filter")
	cmd.Flags().StringVar(&status, "estado", "", "status filter")
	return cmd
}

func casoShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "caso")
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCase(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func casoStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <estado>",
		Short: "Change case status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "caso")
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.TransitionCase(ctx, engine.TransitionCaseRequest{CaseID: id, Status: args[1]})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				fmt.Printf("Caso #%d ahora %s\n", c.ID, c.Status)
				return nil
			})
		},
	}
}

func casoReassignCmd() *cobra.Command {
	var to int64
	var reason string
	cmd := &cobra.Command{
		Use:   "reassign <id>",
		Short: "Reassign a case to another fiscal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "caso")
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.ReassignCase(ctx, engine.ReassignCaseRequest{CaseID: id, NewFiscalID: to, Reason: reason})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"mensaje": engine.ConfirmationMessage(entry), "reasignacion": entry})
				}
				fmt.Println(engine.ConfirmationMessage(entry))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&to, "to", 0, "new fiscal id")
	cmd.Flags().StringVar(&reason, "motivo", "", "reason for the reassignment")
	return cmd
}

func casoExportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cases as csv, markdown, html or text",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCases(ctx)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					return export.Cases(os.Stdout, items, f)
				}
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				if err := export.Cases(file, items, f); err != nil {
					return err
				}
				fmt.Printf("%d casos exportados a %s\n", len(items), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv, markdown, html or text")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Inspect the reassignment log"}
	l.AddCommand(logListCmd())
	return l
}

func logListCmd() *cobra.Command {
	var limit int
	var cursor int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reassignments oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var items []domain.ReassignmentLogEntry
				var err error
				if limit > 0 || cursor > 0 {
					if limit <= 0 {
						limit = 50
					}
					items, err = e.ReassignmentsAfter(ctx, cursor, limit)
				} else {
					items, err = e.ListReassignments(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Caso", "Descripcion", "Anterior", "Nuevo", "Motivo", "Fecha"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.CaseID, it.CaseDescription, it.PreviousFiscalName, it.NewFiscalName, it.Reason, it.Timestamp})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (all entries when zero)")
	cmd.Flags().Int64Var(&cursor, "cursor", 0, "list entries after this id")
	return cmd
}

func statsCmd() *cobra.Command {
	var by, format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Case statistics per fiscal or status",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				switch by {
				case "fiscal", "":
					rows, err := e.StatisticsByFiscal(ctx)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(rows)
					}
					return export.Statistics(os.Stdout, rows, f)
				case "status", "estado":
					rows, err := e.StatisticsByStatus(ctx)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(rows)
					}
					tw := newTable(table.Row{"Estado", "Cantidad"})
					for _, r := range rows {
						tw.AppendRow(table.Row{r.Status, r.Count})
					}
					tw.Render()
					return nil
				default:
					return fmt.Errorf("--by must be fiscal or status, got %q", by)
				}
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "fiscal", "group by fiscal or status")
	cmd.Flags().StringVar(&format, "format", "text", "text, csv, markdown or html")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "fiscalia.yml declares the fiscalias catalog, the same-fiscal reassignment rule, logging, the HTTP server and webhooks.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate fiscalia.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default fiscalia.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			addr := firstNonEmpty(viper.GetString("addr"), cfg.Server.Addr, "127.0.0.1:3000")
			basePath := firstNonEmpty(viper.GetString("base-path"), cfg.Server.BasePath, "/api")

			e, conn, err := app.Bootstrap(ctx, app.Options{
				Workspace:     viper.GetString("workspace"),
				BusyTimeoutMS: viper.GetInt("busy-timeout"),
				Config:        cfg,
			})
			if err != nil {
				return err
			}
			defer conn.Close()
			log := logger.L()
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Log: log})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("serving", zap.String("addr", addr), zap.String("base_path", basePath))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if d := server.NewWebhookDispatcher(e, log); d != nil {
				g.Go(func() error { return d.Run(gctx) })
			}
			fmt.Printf("Serving Fiscalia API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from fiscalia.yml)")
	cmd.Flags().String("base-path", "", "API base path (default from fiscalia.yml)")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("base-path", cmd.Flags().Lookup("base-path"))
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	e, conn, err := app.Bootstrap(ctx, app.Options{
		Workspace:     viper.GetString("workspace"),
		BusyTimeoutMS: viper.GetInt("busy-timeout"),
		Config:        cfg,
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func parseID(s, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validation(errs.CodeInvalidField, field, fmt.Sprintf("%s id %q must be a positive integer", field, s))
	}
	return id, nil
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
