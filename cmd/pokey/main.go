// Command pokey checks schema compatibility, maps schemas to editable trees,
// and manages the schema/config registry.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nbcuni/pokey"
	"github.com/nbcuni/pokey/schematree"
	"github.com/nbcuni/pokey/validate"
)

var (
	oldSchemaPath string
	newSchemaPath string
	schemaPath    string
	treePath      string
	configPath    string
	outputPath    string
	pretty        bool
)

// errSilent signals a failure whose details were already printed.
var errSilent = errors.New("failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "pokey",
	Short:         "JSON Schema registry tooling",
	Long:          `Check JSON Schema updates for backward compatibility, convert schemas to and from editable trees, and manage stored schemas and configs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report backward-incompatible changes between two schemas",
	Long:  `Compare an old and a new schema. Exits non-zero when any incompatibility is found.`,
	RunE:  runCheck,
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Convert a schema into an editable tree",
	RunE:  runTree,
}

var serializeCmd = &cobra.Command{
	Use:   "serialize",
	Short: "Convert an editable tree back into a schema",
	RunE:  runSerialize,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config document against a schema",
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Pretty-print JSON output")

	checkCmd.Flags().StringVar(&oldSchemaPath, "old", "", "Old schema: file path, URL, or raw JSON (required)")
	checkCmd.Flags().StringVar(&newSchemaPath, "new", "", "New schema: file path, URL, or raw JSON (required)")
	checkCmd.MarkFlagRequired("old")
	checkCmd.MarkFlagRequired("new")

	treeCmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Schema: file path, URL, or raw JSON (required)")
	treeCmd.MarkFlagRequired("schema")

	serializeCmd.Flags().StringVarP(&treePath, "tree", "t", "", "Path to tree JSON file (required)")
	serializeCmd.MarkFlagRequired("tree")

	validateCmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "Schema: file path, URL, or raw JSON (required)")
	validateCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config JSON file (required)")
	validateCmd.MarkFlagRequired("schema")
	validateCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(checkCmd, treeCmd, serializeCmd, validateCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	oldSchema, err := pokey.LoadDocumentFromSource(oldSchemaPath)
	if err != nil {
		return fmt.Errorf("error loading old schema: %w", err)
	}
	newSchema, err := pokey.LoadDocumentFromSource(newSchemaPath)
	if err != nil {
		return fmt.Errorf("error loading new schema: %w", err)
	}

	issues := pokey.CheckCompatibility(oldSchema, newSchema)
	if err := writeJSON(issues); err != nil {
		return err
	}
	if len(issues) > 0 {
		return errSilent
	}
	return nil
}

func runTree(cmd *cobra.Command, args []string) error {
	schema, err := pokey.LoadDocumentFromSource(schemaPath)
	if err != nil {
		return fmt.Errorf("error loading schema: %w", err)
	}
	return writeJSON(pokey.ParseTree(schema))
}

func runSerialize(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(treePath)
	if err != nil {
		return fmt.Errorf("error reading tree: %w", err)
	}
	var root schematree.Node
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("error parsing tree: %w", err)
	}
	return writeJSON(pokey.SerializeTree(&root))
}

func runValidate(cmd *cobra.Command, args []string) error {
	doc, err := pokey.LoadDocumentFromSource(schemaPath)
	if err != nil {
		return fmt.Errorf("error loading schema: %w", err)
	}
	schema, err := pokey.Compile(doc)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	if err := schema.Validate(data); err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) && len(verr.Violations) > 0 {
			fmt.Fprintln(os.Stderr, verr.Message)
			for _, v := range verr.Violations {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", v.Path, v.Message)
			}
			return errSilent
		}
		return err
	}
	fmt.Fprintln(os.Stderr, "Config: valid")
	return nil
}

// writeJSON encodes v to --output or stdout.
func writeJSON(v any) error {
	var (
		output []byte
		err    error
	)
	if pretty {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, output, 0644); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Result written to %s\n", outputPath)
		return nil
	}
	fmt.Println(string(output))
	return nil
}
