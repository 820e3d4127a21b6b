package cli

import (
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/graphlens/pkg/filter"
)

// filterFlags are the filter inputs shared by snapshot and timeline.
type filterFlags struct {
	at        string
	types     []string
	edgeTypes []string
	search    string
}

func (f *filterFlags) register(cmd *cobra.Command, withCursor bool) {
	fs := cmd.Flags()
	if withCursor {
		fs.StringVar(&f.at, "at", "", "View the graph at this date (default: no time filter)")
	}
	fs.StringSliceVar(&f.types, "types", nil, "Only show these node types (comma separated)")
	fs.StringSliceVar(&f.edgeTypes, "edge-types", nil, "Only show these edge types (comma separated)")
	fs.StringVar(&f.search, "search", "", "Only show nodes matching this term")
}

func (f *filterFlags) state() (filter.State, error) {
	st := filter.State{SearchTerm: f.search}
	if len(f.types) > 0 {
		st = st.WithTypes(f.types...)
	}
	if len(f.edgeTypes) > 0 {
		st.EnabledEdgeTypes = make(map[string]bool, len(f.edgeTypes))
		for _, t := range f.edgeTypes {
			st.EnabledEdgeTypes[t] = true
		}
	}
	if f.at != "" {
		t, err := parseInstant(f.at)
		if err != nil {
			return st, err
		}
		st.Cursor = t
	}
	return st, nil
}
