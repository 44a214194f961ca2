package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/config"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/ontology"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and validate ontology documents",
	}
	cmd.AddCommand(schemaValidateCmd(), schemaDumpCmd())
	return cmd
}

func schemaValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate an ontology document (the bundled one when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			reg, err := loadRegistry(path)
			if err != nil {
				return err
			}
			name := path
			if name == "" {
				name = "bundled ontology"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (namespace %s, %d object types, %d link types, %d actions, %d functions)\n",
				name, reg.Namespace(), len(reg.ObjectTypes()), len(reg.LinkTypes()), len(reg.Actions()), len(reg.Functions()))
			return nil
		},
	}
}

func schemaDumpCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the configured ontology",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			reg, err := loadRegistry(cfg.DSL.FilePath)
			if err != nil {
				return err
			}
			return writeSchema(cmd.OutOrStdout(), reg.Dump(), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml, json)")
	return cmd
}

func loadRegistry(path string) (*registry.Registry, error) {
	var (
		schema *dsl.OntologySchema
		err    error
	)
	if path == "" {
		schema, err = ontology.Schema()
	} else {
		schema, err = dsl.NewLoader(path).Load()
	}
	if err != nil {
		return nil, err
	}
	return registry.FromSchema(schema)
}

func writeSchema(w io.Writer, schema *dsl.OntologySchema, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(schema); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(schema)
	}
	return fmt.Errorf("unknown format '%s'", format)
}
