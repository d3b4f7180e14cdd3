package diagram

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names an output encoding for a snapshot.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatDOT  Format = "dot"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatDOT:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, yaml or dot)", s)
	}
}

// Write encodes snap in the given format.
func Write(w io.Writer, snap Snapshot, format Format) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, snap)
	case FormatYAML:
		return WriteYAML(w, snap)
	case FormatDOT:
		return WriteDOT(w, snap)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// WriteJSON writes snap as indented JSON.
func WriteJSON(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// WriteYAML writes snap as YAML.
func WriteYAML(w io.Writer, snap Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return err
	}
	return enc.Close()
}

// WriteDOT writes snap as a Graphviz digraph. Node positions are emitted as
// pinned pos attributes so neato reproduces the layout.
func WriteDOT(w io.Writer, snap Snapshot) error {
	var b strings.Builder
	b.WriteString("digraph conceptmap {\n")
	b.WriteString("  node [shape=box, style=rounded];\n")
	for _, n := range snap.Nodes {
		label := n.Data.Label
		if label == "" {
			label = n.ID
		}
		fmt.Fprintf(&b, "  %s [label=%s, pos=\"%.2f,%.2f!\"];\n",
			dotQuote(n.ID), dotQuote(label), n.Position.X, -n.Position.Y)
	}
	for _, e := range snap.Edges {
		if e.Label != "" {
			fmt.Fprintf(&b, "  %s -> %s [label=%s];\n", dotQuote(e.Source), dotQuote(e.Target), dotQuote(e.Label))
		} else {
			fmt.Fprintf(&b, "  %s -> %s;\n", dotQuote(e.Source), dotQuote(e.Target))
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
