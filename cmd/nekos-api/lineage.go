package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nekidev/nekos-api/internal/recordfile"
)

func newLineageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Inspect, extend and apply schema lineages",
	}
	cmd.AddCommand(
		newLineageListCmd(),
		newLineageRecordsCmd(),
		newLineageSchemaCmd(),
		newLineageAppendCmd(),
		newLineageSQLCmd(),
		newLineageApplyCmd(),
		newLineageStatusCmd(),
		newLineageVerifyCmd(),
	)
	return cmd
}

func newLineageListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List lineages and their tips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			tips, err := a.registry.Lineages(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tips)
		},
	}
}

func newLineageRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records <lineage>",
		Short: "Print every record of a lineage, root first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			recs, err := a.registry.Records(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		},
	}
}

func newLineageSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <lineage>",
		Short: "Print the cumulative schema at the tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			s, err := a.registry.CurrentSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
}

func newLineageAppendCmd() *cobra.Command {
	var (
		file    string
		lineage string
	)
	cmd := &cobra.Command{
		Use:   "append -f <record.yaml|record.hcl>",
		Short: "Append a record file at the tip of its lineage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := recordfile.Load(file, lineage)
			if err != nil {
				return err
			}

			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := a.registry.Append(cmd.Context(), *req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "record file (.yaml, .yml or .hcl)")
	cmd.Flags().StringVar(&lineage, "lineage", "", "lineage, when the file does not name one")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newLineageSQLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sql <lineage>",
		Short: "Print the DDL of records not yet applied to the target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			steps, err := a.engine.Plan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, step := range steps {
				fmt.Fprintf(out, "-- %s (seq %d)\n", step.Record, step.Seq)
				for _, stmt := range step.Statements {
					fmt.Fprintln(out, strings.TrimRight(stmt, ";")+";")
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newLineageApplyCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "apply [<lineage>]",
		Short: "Apply pending records to the target store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("name one lineage or pass --all")
			}

			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			if all {
				results, err := a.engine.ApplyAll(cmd.Context())
				if perr := printJSON(cmd.OutOrStdout(), results); perr != nil && err == nil {
					err = perr
				}
				return err
			}
			results, err := a.engine.Apply(cmd.Context(), args[0])
			if perr := printJSON(cmd.OutOrStdout(), results); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "apply every lineage")
	return cmd
}

func newLineageStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <lineage>",
		Short: "Show which records have reached the target store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := a.engine.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), statuses)
		},
	}
}

func newLineageVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <lineage>",
		Short: "Replay a lineage and check links, checksums and the stored tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := a.registry.Verify(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
}
