package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nbcuni/pokey"
	"github.com/nbcuni/pokey/registry"
	"github.com/nbcuni/pokey/store/badgerstore"
	"github.com/nbcuni/pokey/store/dynamostore"
)

var (
	storeKind string
	dataDir   string
	region    string
	endpoint  string
	verbose   bool

	recordName      string
	recordFile      string
	schemaID        string
	includeDisabled bool
	listQuery       registry.ListQuery
	listStatus      string
)

const defaultDataDir = ".pokey"

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage stored schemas",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage stored configs",
}

func init() {
	for _, c := range []*cobra.Command{schemaCmd, configCmd} {
		c.PersistentFlags().StringVar(&storeKind, "store", "", "Store backend: badger or dynamodb (default from pokey.yaml, else badger)")
		c.PersistentFlags().StringVar(&dataDir, "data-dir", "", "BadgerDB data directory (default .pokey)")
		c.PersistentFlags().StringVar(&region, "region", "", "AWS region for the dynamodb store")
		c.PersistentFlags().StringVar(&endpoint, "endpoint", "", "DynamoDB endpoint override, e.g. http://localhost:8000")
		c.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	}

	schemaCreate := &cobra.Command{
		Use:   "create",
		Short: "Create a schema",
		RunE: withService(func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error) {
			data, err := pokey.LoadDocumentFromSource(recordFile)
			if err != nil {
				return nil, err
			}
			return svc.CreateSchema(ctx, registry.CreateSchemaRequest{Name: recordName, SchemaData: data})
		}),
	}
	schemaCreate.Flags().StringVar(&recordName, "name", "", "Schema name (required)")
	schemaCreate.Flags().StringVarP(&recordFile, "file", "f", "", "Schema document: file path, URL, or raw JSON (required)")
	schemaCreate.MarkFlagRequired("name")
	schemaCreate.MarkFlagRequired("file")

	schemaUpdate := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schema; rejected when not backward-compatible",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error) {
			data, err := pokey.LoadDocumentFromSource(recordFile)
			if err != nil {
				return nil, err
			}
			req := registry.UpdateSchemaRequest{SchemaData: data}
			if cmd.Flags().Changed("name") {
				req.Name = &recordName
			}
			return svc.UpdateSchema(ctx, args[0], req)
		}),
	}
	schemaUpdate.Flags().StringVar(&recordName, "name", "", "New schema name")
	schemaUpdate.Flags().StringVarP(&recordFile, "file", "f", "", "Schema document: file path, URL, or raw JSON (required)")
	schemaUpdate.MarkFlagRequired("file")

	schemaGet := &cobra.Command{
		Use:   "get ID",
		Short: "Show a schema",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error) {
			return svc.GetSchema(ctx, args[0])
		}),
	}

	schemaList := &cobra.Command{
		Use:   "list",
		Short: "List schemas",
		RunE: withService(func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error) {
			listQuery.Status = registry.Status(listStatus)
			return svc.ListSchemas(ctx, listQuery)
		}),
	}
	addListFlags(schemaList)

	schemaCmd.AddCommand(
		schemaCreate,
		schemaUpdate,
		schemaGet,
		schemaList,
		statusCommand("disable", "Disable a schema", (*registry.Service).DisableSchema),
		statusCommand("activate", "Activate a schema", (*registry.Service).ActivateSchema),
	)

	configCreate := &cobra.Command{
		Use:   "create",
		Short: "Create a config validated against its schema",
		RunE: withService(func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error) {
			data, err := pokey.LoadDocumentFromSource(recordFile)
			if err != nil {
				return nil, err
			}
			return svc.CreateConfig(ctx, registry.CreateConfigRequest{Name: recordName, SchemaID: schemaID, ConfigData: data})
		}),
	}
	configCreate.Flags().StringVar(&recordName, "name", "", "Config name (required)")
	configCreate.Flags().StringVar(&schemaID, "schema-id", "", "Schema id (required)")
	configCreate.Flags().StringVarP(&recordFile, "file", "f", "", "Config document: file path, URL, or raw JSON (required)")
	configCreate.MarkFlagRequired("name")
	configCreate.MarkFlagRequired("schema-id")
	configCreate.MarkFlagRequired("file")

	configUpdate := &cobra.Command{
		Use:   "update ID",
		Short: "Update a config",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error) {
			data, err := pokey.LoadDocumentFromSource(recordFile)
			if err != nil {
				return nil, err
			}
			req := registry.UpdateConfigRequest{SchemaID: schemaID, ConfigData: data}
			if cmd.Flags().Changed("name") {
				req.Name = &recordName
			}
			return svc.UpdateConfig(ctx, args[0], req)
		}),
	}
	configUpdate.Flags().StringVar(&recordName, "name", "", "New config name")
	configUpdate.Flags().StringVar(&schemaID, "schema-id", "", "Schema id (required)")
	configUpdate.Flags().StringVarP(&recordFile, "file", "f", "", "Config document: file path, URL, or raw JSON (required)")
	configUpdate.MarkFlagRequired("schema-id")
	configUpdate.MarkFlagRequired("file")

	configGet := &cobra.Command{
		Use:   "get ID",
		Short: "Show a config",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error) {
			return svc.GetConfig(ctx, args[0], includeDisabled)
		}),
	}
	configGet.Flags().BoolVar(&includeDisabled, "include-disabled", false, "Return the config even when disabled")

	configList := &cobra.Command{
		Use:   "list",
		Short: "List configs",
		RunE: withService(func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error) {
			listQuery.Status = registry.Status(listStatus)
			return svc.ListConfigs(ctx, listQuery)
		}),
	}
	addListFlags(configList)
	configList.Flags().StringVar(&listQuery.SchemaID, "schema-id", "", "Only configs of this schema")

	configCmd.AddCommand(
		configCreate,
		configUpdate,
		configGet,
		configList,
		statusCommand("disable", "Disable a config", (*registry.Service).DisableConfig),
		statusCommand("activate", "Activate a config", (*registry.Service).ActivateConfig),
	)

	rootCmd.AddCommand(schemaCmd, configCmd)
}

func addListFlags(c *cobra.Command) {
	c.Flags().StringVar(&listStatus, "status", "", "Filter by status: active or disabled")
	c.Flags().StringVar(&listQuery.Name, "name", "", "Filter by name substring (min 3 characters)")
	c.Flags().StringVar(&listQuery.ID, "id", "", "Filter by id substring (min 3 characters)")
	c.Flags().IntVar(&listQuery.Limit, "limit", registry.DefaultPageLimit, "Page size (1-100)")
	c.Flags().StringVar(&listQuery.NextToken, "next-token", "", "Cursor from a previous page")
}

func statusCommand[T any](use, short string, op func(*registry.Service, context.Context, string) (T, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error) {
			return op(svc, ctx, args[0])
		}),
	}
}

type serviceFunc func(ctx context.Context, svc *registry.Service, cmd *cobra.Command, args []string) (any, error)

// withService opens the configured store, runs fn, and prints its result.
// Registry errors are printed as JSON on stderr.
func withService(fn serviceFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		svc := registry.NewService(store, registry.WithLogger(logger))
		result, err := fn(ctx, svc, cmd, args)
		if err != nil {
			var rerr *registry.Error
			if errors.As(err, &rerr) {
				out, _ := json.MarshalIndent(rerr, "", "  ")
				fmt.Fprintln(os.Stderr, string(out))
				return errSilent
			}
			return err
		}
		return writeJSON(result)
	}
}

// resolveConfig merges pokey.yaml with explicitly set flags.
func resolveConfig(cmd *cobra.Command) (Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = storeKind
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("region") {
		cfg.Region = region
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = endpoint
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg Config) (registry.Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "badger":
		dir := cfg.DataDir
		if dir == "" {
			dir = defaultDataDir
		}
		return badgerstore.New(badgerstore.Options{Path: dir})
	case "dynamodb", "dynamo":
		return dynamostore.New(ctx, dynamostore.Options{
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			SchemasTable: cfg.SchemasTable,
			ConfigsTable: cfg.ConfigsTable,
		})
	default:
		return nil, fmt.Errorf("unknown store %q (want badger or dynamodb)", cfg.Store)
	}
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil || cfg.LogLevel == "" {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
