// Command `emailrecords` looks up the email related DNS records of many
// domains and prints one JSON object per domain.
//
// Usage:
//
//	emailrecords -d <domain>[,<domain>...]  - Look up domains given on the command line
//	emailrecords -f <file>                  - Look up domains listed in a plain or CSV file
//	emailrecords types                      - List the supported lookup types
//	emailrecords config init                - Write the default configuration file
//	emailrecords version                    - Show version information
//
// Examples:
//
//	emailrecords -d example.com,example.org
//	emailrecords -f top-1m.csv --csv-column 2 -c 1000 -o records.jsonl
//	emailrecords -f domains.txt -t mx -t txt -n 1.1.1.1 -n 8.8.8.8
//
// Results go to stdout unless -o is given; diagnostics go to stderr.
package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ndejong/domain-email-records/internal/buildinfo"
	"github.com/ndejong/domain-email-records/internal/config"
	"github.com/ndejong/domain-email-records/internal/log"
	"github.com/ndejong/domain-email-records/internal/lookup"
)

// typeInfo describes what each lookup type queries, for the types command.
var typeInfo = map[lookup.Type][2]string{
	lookup.NS:           {"<domain>", "NS"},
	lookup.Apex:         {"<domain>", "A"},
	lookup.MX:           {"<domain>", "MX exchange"},
	lookup.MXPreference: {"<domain>", "MX preference"},
	lookup.SPF:          {"<domain>", "TXT containing spf1/spf2"},
	lookup.TXT:          {"<domain>", "TXT"},
	lookup.DMARC:        {"_dmarc.<domain>", "TXT"},
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		reportError(err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}

func newRootCmd() *cobra.Command {
	root, _ := newLookupCmd()

	// ---- version command ----
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "version: %s\n", buildinfo.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", buildinfo.Commit)
		},
	}

	// ---- types command ----
	typesCmd := &cobra.Command{
		Use:     "types",
		Short:   "List the supported lookup types",
		Example: "emailrecords types",
		Run: func(cmd *cobra.Command, _ []string) {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Type", "Query Name", "Record", "Default"})
			table.SetHeaderColor(
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
				tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
			)
			table.SetBorder(false)
			table.SetColumnColor(
				tablewriter.Colors{tablewriter.FgGreenColor},
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
				tablewriter.Colors{tablewriter.FgHiWhiteColor},
				tablewriter.Colors{tablewriter.FgYellowColor},
			)

			for _, t := range lookup.All {
				def := "No"
				if slices.Contains(lookup.DefaultTypes, t) {
					def = "Yes"
				}
				if t == lookup.MXPreference {
					def = "With mx"
				}
				info := typeInfo[t]
				table.Append([]string{string(t), info[0], info[1], def})
			}

			color.New(color.Bold).Fprintln(cmd.OutOrStdout(), "LOOKUP TYPES:")
			table.Render()
		},
	}

	// ---- config command ----
	var force bool
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Long: `Write the default configuration to the path given by --config,
or to ~/.domain-email-records/config.yaml.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			p := config.New(path)
			if err := p.Save(config.Default(), force); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", p.Path())
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Replace an existing configuration file")
	configCmd.AddCommand(initCmd)

	root.AddCommand(versionCmd, typesCmd, configCmd)
	return root
}

// reportError prints err in red; a rejected lookup type also lists what
// was requested and what is supported.
func reportError(err error) {
	red := color.New(color.FgHiRed, color.Bold)
	var typed *lookup.UnsupportedLookupTypeError

	switch {
	case errors.As(err, &typed):
		red.Fprint(os.Stderr, "ERROR: ")
		color.New(color.FgRed).Fprintln(os.Stderr, typed.Error())
		color.New(color.FgYellow).Fprintf(os.Stderr, "requested: %s\n", strings.Join(typed.Requested, ", "))
		names := make([]string, len(lookup.All))
		for i, t := range lookup.All {
			names[i] = string(t)
		}
		color.New(color.FgHiWhite).Fprintf(os.Stderr, "supported: %s\n", strings.Join(names, ", "))
	default:
		red.Fprint(os.Stderr, "ERROR: ")
		color.New(color.FgRed).Fprintln(os.Stderr, err.Error())
	}
}
