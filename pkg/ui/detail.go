package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/goccy/go-json"

	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/selection"
)

const dateLayout = "2 Jan 2006"

// nodeMarkdown describes a selected node: its fields, validity, properties
// and every connection in the current view.
func nodeMarkdown(n *model.Node, conns []selection.Connection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s %s\n\n", TypeIcon(n.Type), escapeMD(n.DisplayName()))
	fmt.Fprintf(&b, "- **ID:** `%s`\n", n.ID)
	fmt.Fprintf(&b, "- **Type:** %s\n", escapeMD(n.Type))
	if v := validity(n.Validity); v != "" {
		fmt.Fprintf(&b, "- **Active:** %s\n", v)
	}
	if n.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", escapeMD(n.Description))
	}

	if len(n.Properties) > 0 {
		b.WriteString("\n### Properties\n\n")
		keys := make([]string, 0, len(n.Properties))
		for k := range n.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s:** %s\n", escapeMD(k), escapeMD(propertyText(n.Properties[k])))
		}
	}

	fmt.Fprintf(&b, "\n### Connections (%d)\n\n", len(conns))
	if len(conns) == 0 {
		b.WriteString("_No connections at this point in time._\n")
	}
	for _, c := range conns {
		arrow := "→"
		if c.Direction == selection.Incoming {
			arrow = "←"
		}
		fmt.Fprintf(&b, "- %s *%s* %s\n", arrow, escapeMD(c.Relationship), escapeMD(c.Node.DisplayName()))
	}
	return b.String()
}

// metadataMarkdown is shown while nothing is selected.
func metadataMarkdown(g *model.Graph, event *model.KeyEvent) string {
	var b strings.Builder
	b.WriteString("## Graph\n\n")
	if g == nil {
		b.WriteString("_Nothing loaded._\n")
		return b.String()
	}
	fmt.Fprintf(&b, "- **Nodes:** %d\n- **Edges:** %d\n", len(g.Nodes), len(g.Edges))
	if m := g.Metadata; m != nil {
		for _, kv := range [][2]string{
			{"Type", m.GraphType},
			{"Schema", m.SchemaVersion},
			{"Author", m.Author},
			{"Updated", m.LastUpdated},
		} {
			if kv[1] != "" {
				fmt.Fprintf(&b, "- **%s:** %s\n", kv[0], escapeMD(kv[1]))
			}
		}
		if m.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", escapeMD(m.Description))
		}
		if len(m.KeyEvents) > 0 {
			b.WriteString("\n### Key events\n\n")
			for _, ev := range m.KeyEvents {
				when := ev.Timestamp
				if t, err := ev.Time(); err == nil {
					when = t.UTC().Format(dateLayout)
				}
				line := fmt.Sprintf("%s: %s", when, escapeMD(ev.Description))
				if event != nil && ev == *event {
					line = "**" + line + "**"
				}
				fmt.Fprintf(&b, "- %s\n", line)
			}
		}
	}
	b.WriteString("\n_Tab to a node and press Enter to inspect it._\n")
	return b.String()
}

func validity(r *model.TemporalRange) string {
	if r == nil || (r.ValidFrom == nil && r.ValidTo == nil) {
		return ""
	}
	from, to := "start", "present"
	if r.ValidFrom != nil {
		from = r.ValidFrom.UTC().Format(dateLayout)
	}
	if r.ValidTo != nil {
		to = r.ValidTo.UTC().Format(dateLayout)
	}
	return from + " – " + to
}

func propertyText(v any) string {
	switch x := v.(type) {
	case nil:
		return "–"
	case string:
		return x
	case time.Time:
		return x.Format(dateLayout)
	case float64, bool, int, int64:
		return fmt.Sprint(x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "#", `\#`, "<", "&lt;",
)

func escapeMD(s string) string {
	return mdEscaper.Replace(s)
}

// nodeJSON is what the copy key puts on the clipboard.
func nodeJSON(n *model.Node) (string, error) {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding node %s: %w", n.ID, err)
	}
	return string(data), nil
}

// markdownRenderer renders detail markdown at a given width. A failed
// renderer falls back to the raw markdown.
type markdownRenderer struct {
	width int
	r     *glamour.TermRenderer
}

func newMarkdownRenderer(width int) *markdownRenderer {
	width = max(20, width)
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	return &markdownRenderer{width: width, r: r}
}

func (m *markdownRenderer) Render(md string) string {
	if m == nil || m.r == nil {
		return md
	}
	out, err := m.r.Render(md)
	if err != nil {
		return md
	}
	// Strip trailing whitespace/newlines that glamour adds
	return strings.TrimRight(out, " \n")
}
