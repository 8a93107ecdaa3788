package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cognicore/ontofix/pkg/ontofix"
	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/report"
)

func newDebugCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Find bugs and compute one repair per ranker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := flags.open(cmd, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.debugger.Debug(cmd.Context(), s.name, s.comp.Ontology)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return writeResult(cmd.OutOrStdout(), res, true)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the repair reports as JSON")
	return cmd
}

func newBugsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "bugs",
		Short: "List unsatisfiable entities with their MUPS and diagnoses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.ErrorSearch.FindRootErrors = false
			s, err := flags.open(cmd, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.debugger.Debug(cmd.Context(), s.name, s.comp.Ontology)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res, false)
		},
	}
}

func newMUPSCmd(flags *rootFlags) *cobra.Command {
	var entity string
	var property bool
	cmd := &cobra.Command{
		Use:   "mups",
		Short: "Debug a single entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.ErrorSearch.FindRootErrors = false
			s, err := flags.open(cmd, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			e := axiom.NewClass(entity)
			if property {
				e = axiom.NewProperty(entity)
			}
			b, err := s.debugger.FindBug(cmd.Context(), s.comp.Ontology, e)
			if err != nil {
				return err
			}
			if b == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is satisfiable\n", e)
				return nil
			}
			writeBug(cmd.OutOrStdout(), b)
			return nil
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "entity name")
	cmd.Flags().BoolVar(&property, "property", false, "the entity is an object property")
	cmd.MarkFlagRequired("entity")
	return cmd
}

func writeResult(w io.Writer, res *ontofix.Result, repairs bool) error {
	if res.InitialErrors.Len() > 0 || res.WhiteList.Len() > 0 {
		fmt.Fprintf(w, "initial errors: %d, white-listed: %d\n", res.InitialErrors.Len(), res.WhiteList.Len())
	}
	for _, p := range res.Passes {
		fmt.Fprintf(w, "== %s: %d bugs, %d MUPS, %d suspected axioms\n",
			p.Name, p.Bugs.Len(), len(p.Bugs.MUPS()), p.Bugs.Suspected().Len())
		if p.Missing.Len() > 0 {
			fmt.Fprintf(w, "suspected axioms missing here: %v\n", p.Missing.Sorted())
		}
		if !repairs {
			for _, b := range p.Bugs.Bugs() {
				writeBug(w, b)
			}
			continue
		}
		for _, rep := range p.Repairs {
			if err := rep.WriteText(w); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeBug(w io.Writer, b *bug.Bug) {
	fmt.Fprintf(w, "%s %s\n", b.Entity().Kind, b.Entity())
	for _, m := range b.MUPS() {
		fmt.Fprintf(w, "  mups (%s):\n", m.Type())
		for _, a := range m.Axioms() {
			fmt.Fprintf(w, "    %s\n", a)
		}
	}
	for _, d := range b.Diagnoses() {
		fmt.Fprintf(w, "  diagnosis: %v\n", d.Sorted())
	}
}

func writeJSON(w io.Writer, res *ontofix.Result) error {
	var reports []report.Report
	for _, p := range res.Passes {
		reports = append(reports, p.Repairs...)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
