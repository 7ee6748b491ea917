package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/docgraph/internal/config"
	"github.com/rohankatakam/docgraph/internal/dlq"
	"github.com/rohankatakam/docgraph/internal/graph"
)

// nodeView is the printed shape of a node
type nodeView struct {
	ID         int64          `json:"id" yaml:"id"`
	ElementID  string         `json:"element_id,omitempty" yaml:"element_id,omitempty"`
	Labels     []string       `json:"labels" yaml:"labels"`
	Properties map[string]any `json:"properties" yaml:"properties"`
}

func nodes(n *graph.Node) []graph.Node {
	return []graph.Node{*n}
}

func writeNodes(w io.Writer, ns []graph.Node, format string) error {
	views := make([]nodeView, 0, len(ns))
	for _, n := range ns {
		views = append(views, nodeView{ID: n.ID, ElementID: n.ElementID, Labels: n.Labels, Properties: n.Props})
	}

	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// writeDeadLetters prints the entries as a table, optionally followed by their statements
func writeDeadLetters(w io.Writer, total int, entries []dlq.Entry, withStatements bool) error {
	fmt.Fprintf(w, "%d dead letters, showing %d\n", total, len(entries))
	if len(entries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNAMESPACE\tOPERATION\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Namespace, e.Operation, e.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !withStatements {
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "\n%s:\n", e.ID)
		statements, err := e.DecodedStatements()
		if err != nil {
			fmt.Fprintf(w, "  (unreadable: %v)\n", err)
			continue
		}
		for _, stmt := range statements {
			fmt.Fprintf(w, "  %s\n", stmt)
		}
	}
	return nil
}

// writeCheckpoints prints one namespace per line, sorted by name
func writeCheckpoints(w io.Writer, checkpoints map[string]int64) {
	if len(checkpoints) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	names := make([]string, 0, len(checkpoints))
	for ns := range checkpoints {
		names = append(names, ns)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ns := range names {
		fmt.Fprintf(tw, "  %s\t%d\n", ns, checkpoints[ns])
	}
	tw.Flush()
}

// writeConfig prints the effective configuration as YAML with secrets masked
func writeConfig(w io.Writer, c *config.Config) error {
	masked := *c
	if masked.Neo4j.Password != "" {
		masked.Neo4j.Password = config.MaskSecret(masked.Neo4j.Password)
	}
	if masked.Spatial.Auth != "" {
		masked.Spatial.Auth = config.MaskSecret(masked.Spatial.Auth)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(masked); err != nil {
		return err
	}
	return enc.Close()
}
