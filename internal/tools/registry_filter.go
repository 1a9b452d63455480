package tools

// AllToolNames returns the names of every registered tool, in no
// particular order.
func (r *Registry) AllToolNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// FilteredCopy returns a new registry containing only the named tools.
// Names with no registered tool are skipped. The copy shares tool
// definitions with the source but has its own table, so registering
// into the copy leaves the source unchanged.
func (r *Registry) FilteredCopy(include []string) *Registry {
	filtered := &Registry{
		tools:    make(map[string]*Tool, len(include)),
		dispatch: r.dispatch,
	}
	for _, name := range include {
		if t, ok := r.tools[name]; ok {
			filtered.tools[name] = t
		}
	}
	return filtered
}

// FilteredCopyExcluding returns a new registry containing every tool
// except the named ones.
func (r *Registry) FilteredCopyExcluding(exclude []string) *Registry {
	drop := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		drop[name] = true
	}
	filtered := &Registry{
		tools:    make(map[string]*Tool, len(r.tools)),
		dispatch: r.dispatch,
	}
	for name, t := range r.tools {
		if !drop[name] {
			filtered.tools[name] = t
		}
	}
	return filtered
}
