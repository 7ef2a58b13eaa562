package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tempoline/internal/auth"
	"tempoline/internal/catalog"
	"tempoline/internal/config"
	"tempoline/internal/db"
	"tempoline/internal/domain"
	"tempoline/internal/engine"
	"tempoline/internal/migrate"
	"tempoline/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Tempoline CLI",
	Long: `Tempoline manages the eligible catalogs and manager engagement
assignments behind a consulting time tracker.

- Catalogs: shared lists of engagements, tasks, and deliverables that staff
  pick from when reporting time. Natural keys are case-insensitive.
- Engagements: per-manager assignment roots with ordered task and
  deliverable children; writes replace the children as a set.
- Imports: bulk catalog loads that count every record as created, updated,
  or skipped with a reason.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetString("workspace"))
		if err != nil {
			return err
		}
		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TEMPOLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("token", "", "bearer token identifying the actor")
	rootCmd.PersistentFlags().Int64("actor-id", 0, "actor user id when no token is given")
	rootCmd.PersistentFlags().String("rank", string(domain.RankManager), "actor rank when no token is given")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("rank", rootCmd.PersistentFlags().Lookup("rank"))
}

func registerCommands() {
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(engagementCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(tokenCmd())
}

// currentActor resolves the acting user: a signed token when present,
// otherwise the actor-id and rank flags for local use.
func currentActor() (domain.Actor, error) {
	if token := viper.GetString("token"); token != "" {
		cfg, err := config.Load(viper.GetString("workspace"))
		if err != nil {
			return domain.Actor{}, err
		}
		return auth.Authenticate(token, cfg.Auth.JWTSecret)
	}
	id := viper.GetInt64("actor-id")
	if id == 0 {
		return domain.Actor{}, fmt.Errorf("--token or --actor-id required")
	}
	rank := domain.Rank(viper.GetString("rank"))
	if !rank.Valid() {
		return domain.Actor{}, fmt.Errorf("unknown rank %q", viper.GetString("rank"))
	}
	return domain.Actor{ID: id, Rank: rank}, nil
}

func catalogCmd() *cobra.Command {
	cat := &cobra.Command{Use: "catalog", Short: "Manage eligible catalogs"}
	cat.AddCommand(catalogEngagementCmd())
	cat.AddCommand(catalogTaskCmd())
	cat.AddCommand(catalogDeliverableCmd())
	return cat
}

func catalogEngagementCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "engagement", Short: "Eligible engagements"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List eligible engagements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				items, err := s.ListEngagements(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Code", "Name"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.EngagementCode, e.EngagementName})
				}
				tw.Render()
				return nil
			})
		},
	}

	var code, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an eligible engagement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				entry, err := s.CreateEngagement(ctx, catalog.EngagementInput{EngagementCode: code, EngagementName: name})
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	create.Flags().StringVar(&code, "code", "", "engagement code")
	create.Flags().StringVar(&name, "name", "", "engagement name")

	var upCode, upName string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an eligible engagement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				entry, err := s.UpdateEngagement(ctx, id, catalog.EngagementInput{EngagementCode: upCode, EngagementName: upName})
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	update.Flags().StringVar(&upCode, "code", "", "engagement code")
	update.Flags().StringVar(&upName, "name", "", "engagement name")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an eligible engagement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				return s.DeleteEngagement(ctx, id)
			})
		},
	}

	var searchLimit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search eligible engagements",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				items, err := s.SearchEngagements(ctx, query, searchLimit)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	search.Flags().IntVar(&searchLimit, "limit", 0, "max results")

	var importFile string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Bulk import eligible engagements from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []catalog.EngagementRecord
			if err := readJSONFile(importFile, &records); err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				result, err := s.ImportEngagements(ctx, records)
				if err != nil {
					return err
				}
				return printJSONOrTable(result)
			})
		},
	}
	imp.Flags().StringVar(&importFile, "file", "", "path to a JSON array of records")
	_ = imp.MarkFlagRequired("file")

	export := &cobra.Command{
		Use:   "export",
		Short: "Export the engagement catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				items, err := s.ListEngagements(ctx)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}

	cmd.AddCommand(list, create, update, del, search, imp, export)
	return cmd
}

func catalogTaskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Eligible tasks"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List eligible tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				items, err := s.ListTasks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Macroprocess", "Process", "Label"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Macroprocess, t.Process, t.Label})
				}
				tw.Render()
				return nil
			})
		},
	}

	var macroprocess, process, label string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an eligible task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				entry, err := s.CreateTask(ctx, catalog.TaskInput{Macroprocess: macroprocess, Process: process, Label: label})
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	create.Flags().StringVar(&macroprocess, "macroprocess", "", "macroprocess")
	create.Flags().StringVar(&process, "process", "", "process")
	create.Flags().StringVar(&label, "label", "", "task label")

	var upMacroprocess, upProcess, upLabel string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an eligible task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				entry, err := s.UpdateTask(ctx, id, catalog.TaskInput{Macroprocess: upMacroprocess, Process: upProcess, Label: upLabel})
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	update.Flags().StringVar(&upMacroprocess, "macroprocess", "", "macroprocess")
	update.Flags().StringVar(&upProcess, "process", "", "process")
	update.Flags().StringVar(&upLabel, "label", "", "task label")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an eligible task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				return s.DeleteTask(ctx, id)
			})
		},
	}

	var searchLimit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search eligible tasks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				items, err := s.SearchTasks(ctx, query, searchLimit)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	search.Flags().IntVar(&searchLimit, "limit", 0, "max results")

	var importFile string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Bulk import eligible tasks from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []catalog.TaskRecord
			if err := readJSONFile(importFile, &records); err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				result, err := s.ImportTasks(ctx, records)
				if err != nil {
					return err
				}
				return printJSONOrTable(result)
			})
		},
	}
	imp.Flags().StringVar(&importFile, "file", "", "path to a JSON array of records")
	_ = imp.MarkFlagRequired("file")

	export := &cobra.Command{
		Use:   "export",
		Short: "Export the task catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				items, err := s.ListTasks(ctx)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}

	cmd.AddCommand(list, create, update, del, search, imp, export)
	return cmd
}

func catalogDeliverableCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "deliverable", Short: "Eligible deliverables"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List eligible deliverables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				items, err := s.ListDeliverables(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Label", "Periodicity"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Label, d.Periodicity})
				}
				tw.Render()
				return nil
			})
		},
	}

	var label, periodicity string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an eligible deliverable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				entry, err := s.CreateDeliverable(ctx, catalog.DeliverableInput{Label: label, Periodicity: periodicity})
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	create.Flags().StringVar(&label, "label", "", "deliverable label")
	create.Flags().StringVar(&periodicity, "periodicity", "", "periodicity (daily..annual, not_applicable)")

	var upLabel, upPeriodicity string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an eligible deliverable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				entry, err := s.UpdateDeliverable(ctx, id, catalog.DeliverableInput{Label: upLabel, Periodicity: upPeriodicity})
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	update.Flags().StringVar(&upLabel, "label", "", "deliverable label")
	update.Flags().StringVar(&upPeriodicity, "periodicity", "", "periodicity")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an eligible deliverable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				return s.DeleteDeliverable(ctx, id)
			})
		},
	}

	var searchLimit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search eligible deliverables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				items, err := s.SearchDeliverables(ctx, query, searchLimit)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	search.Flags().IntVar(&searchLimit, "limit", 0, "max results")

	var importFile string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Bulk import eligible deliverables from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []catalog.DeliverableRecord
			if err := readJSONFile(importFile, &records); err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				result, err := s.ImportDeliverables(ctx, records)
				if err != nil {
					return err
				}
				return printJSONOrTable(result)
			})
		},
	}
	imp.Flags().StringVar(&importFile, "file", "", "path to a JSON array of records")
	_ = imp.MarkFlagRequired("file")

	export := &cobra.Command{
		Use:   "export",
		Short: "Export the deliverable catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s catalog.Store) error {
				items, err := s.ListDeliverables(ctx)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}

	cmd.AddCommand(list, create, update, del, search, imp, export)
	return cmd
}

// engagementFlags collects the shared write flags. Each --task and
// --deliverable value is a label, optionally prefixed with a catalog id as
// "#<id>:".
type engagementFlags struct {
	Code         string
	Name         string
	EligibleID   int64
	Tasks        []string
	Deliverables []string
	Manager      int64
}

func (f engagementFlags) taskInputs() ([]engine.TaskInput, error) {
	out := make([]engine.TaskInput, 0, len(f.Tasks))
	for _, raw := range f.Tasks {
		label, id, err := parseChild(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, engine.TaskInput{Label: label, EligibleTaskID: id})
	}
	return out, nil
}

func (f engagementFlags) deliverableInputs() ([]engine.DeliverableInput, error) {
	out := make([]engine.DeliverableInput, 0, len(f.Deliverables))
	for _, raw := range f.Deliverables {
		label, id, err := parseChild(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, engine.DeliverableInput{Label: label, EligibleDeliverableID: id})
	}
	return out, nil
}

func parseChild(raw string) (string, *int64, error) {
	if !strings.HasPrefix(raw, "#") {
		return raw, nil, nil
	}
	head, label, ok := strings.Cut(raw[1:], ":")
	if !ok {
		return "", nil, fmt.Errorf("child %q: expected #<id>:<label>", raw)
	}
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("child %q: %w", raw, err)
	}
	return label, &id, nil
}

func (f engagementFlags) eligibleID() *int64 {
	if f.EligibleID == 0 {
		return nil
	}
	id := f.EligibleID
	return &id
}

func (f engagementFlags) managerID() *int64 {
	if f.Manager == 0 {
		return nil
	}
	id := f.Manager
	return &id
}

func addEngagementWriteFlags(cmd *cobra.Command, f *engagementFlags) {
	cmd.Flags().StringVar(&f.Code, "code", "", "engagement code")
	cmd.Flags().StringVar(&f.Name, "name", "", "engagement name")
	cmd.Flags().Int64Var(&f.EligibleID, "eligible-id", 0, "eligible engagement id to link")
	cmd.Flags().StringArrayVar(&f.Tasks, "task", nil, "task label, or #<id>:<label> to link")
	cmd.Flags().StringArrayVar(&f.Deliverables, "deliverable", nil, "deliverable label, or #<id>:<label> to link")
	cmd.Flags().Int64Var(&f.Manager, "manager", 0, "act for this manager id (admins only)")
}

func engagementCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "engagement", Short: "Manage manager engagements"}

	var createFlags engagementFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an engagement with its tasks and deliverables",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := currentActor()
			if err != nil {
				return err
			}
			managerID, err := auth.ScopeManagerID(actor, createFlags.managerID())
			if err != nil {
				return err
			}
			tasks, err := createFlags.taskInputs()
			if err != nil {
				return err
			}
			deliverables, err := createFlags.deliverableInputs()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				out, err := e.Create(ctx, engine.CreateOptions{
					ManagerID:            managerID,
					EngagementCode:       createFlags.Code,
					EngagementName:       createFlags.Name,
					EligibleEngagementID: createFlags.eligibleID(),
					Tasks:                tasks,
					Deliverables:         deliverables,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	addEngagementWriteFlags(create, &createFlags)

	var updateFlags engagementFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rewrite an engagement, replacing its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			actor, err := currentActor()
			if err != nil {
				return err
			}
			managerID, err := auth.ScopeManagerID(actor, updateFlags.managerID())
			if err != nil {
				return err
			}
			tasks, err := updateFlags.taskInputs()
			if err != nil {
				return err
			}
			deliverables, err := updateFlags.deliverableInputs()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				out, err := e.Update(ctx, engine.UpdateOptions{
					ID:                   id,
					ManagerID:            managerID,
					EngagementCode:       updateFlags.Code,
					EngagementName:       updateFlags.Name,
					EligibleEngagementID: updateFlags.eligibleID(),
					Tasks:                tasks,
					Deliverables:         deliverables,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	addEngagementWriteFlags(update, &updateFlags)

	var delManager int64
	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an engagement and its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			actor, err := currentActor()
			if err != nil {
				return err
			}
			var onBehalf *int64
			if delManager != 0 {
				onBehalf = &delManager
			}
			managerID, err := auth.ScopeManagerID(actor, onBehalf)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Delete(ctx, managerID, id)
			})
		},
	}
	del.Flags().Int64Var(&delManager, "manager", 0, "act for this manager id (admins only)")

	var getManager int64
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one engagement with its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			actor, err := currentActor()
			if err != nil {
				return err
			}
			var onBehalf *int64
			if getManager != 0 {
				onBehalf = &getManager
			}
			managerID, err := auth.ScopeManagerID(actor, onBehalf)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				out, err := e.Get(ctx, managerID, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	get.Flags().Int64Var(&getManager, "manager", 0, "act for this manager id (admins only)")

	var listManager int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List the manager's engagements with children",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := currentActor()
			if err != nil {
				return err
			}
			var onBehalf *int64
			if listManager != 0 {
				onBehalf = &listManager
			}
			managerID, err := auth.ScopeManagerID(actor, onBehalf)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.List(ctx, managerID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Code", "Name", "Tasks", "Deliverables"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.EngagementCode, m.EngagementName, len(m.Tasks), len(m.Deliverables)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().Int64Var(&listManager, "manager", 0, "act for this manager id (admins only)")

	listAll := &cobra.Command{
		Use:   "list-all",
		Short: "List every manager's engagements, grouped (admins only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := currentActor()
			if err != nil {
				return err
			}
			if err := auth.RequireAdmin(actor); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				groups, err := e.ListAllGrouped(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(groups)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Manager", "Email", "ID", "Code", "Name", "Tasks", "Deliverables"})
				for _, g := range groups {
					for _, m := range g.Engagements {
						tw.AppendRow(table.Row{g.Manager.Name, g.Manager.Email, m.ID, m.EngagementCode, m.EngagementName, len(m.Tasks), len(m.Deliverables)})
					}
				}
				tw.Render()
				return nil
			})
		},
	}

	cmd.AddCommand(create, update, del, get, list, listAll)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}

	var name, email, rank string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC().Format(time.RFC3339)
			u, err := domain.NewUser(name, email, domain.Rank(rank), now)
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, repository repo.Repo) error {
				id, err := repository.InsertUser(ctx, repository.DB, u)
				if err != nil {
					return err
				}
				u.ID = id
				return printJSONOrTable(u)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "full name")
	add.Flags().StringVar(&email, "email", "", "email address")
	add.Flags().StringVar(&rank, "rank", string(domain.RankStaff), "rank (Staff, Senior, Manager, Admin)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, repository repo.Repo) error {
				users, err := repository.ListUsers(ctx, repository.DB)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Rank"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Rank})
				}
				tw.Render()
				return nil
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Issue bearer tokens"}

	var actorID int64
	var rank string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.Rank(rank)
			if !r.Valid() {
				return fmt.Errorf("unknown rank %q", rank)
			}
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			token, err := auth.Sign(domain.Actor{ID: actorID, Rank: r}, cfg.Auth.JWTSecret)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issue.Flags().Int64Var(&actorID, "actor-id", 0, "user id to sign for")
	issue.Flags().StringVar(&rank, "rank", string(domain.RankStaff), "rank claim")
	_ = issue.MarkFlagRequired("actor-id")

	cmd.AddCommand(issue)
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, engine.New(conn))
}

func withStore(ctx context.Context, fn func(context.Context, catalog.Store) error) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()
	cfg, err := config.Load(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	s := catalog.New(conn)
	s.SearchLimit = cfg.Catalog.SearchLimit
	return fn(ctx, s)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func openDB() (*sql.DB, error) {
	conn, err := db.Open(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
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

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
