package runtime

import (
	"errors"
	"fmt"
	"sort"

	errspkg "github.com/drblury/routewire/internal/runtime/errors"
	handlerspkg "github.com/drblury/routewire/internal/runtime/handlers"
)

type routeEntry struct {
	binding handlerspkg.RouteBinding
	stats   *RouteStats
}

// Registry holds the immutable handler set of an engine. It is fully built
// at construction and only read afterwards, so lookups need no locking.
type Registry struct {
	routes   map[string]*routeEntry
	metadata []handlerspkg.MetadataBinding
}

func newRegistry(routes []handlerspkg.RouteBinding, metadataHandlers []handlerspkg.MetadataBinding) (*Registry, error) {
	if violations := validateBindings(routes, metadataHandlers); len(violations) > 0 {
		return nil, errspkg.NewConstructionError(errors.Join(violations...))
	}

	entries := make(map[string]*routeEntry, len(routes))
	for _, binding := range routes {
		entries[binding.Route] = &routeEntry{
			binding: binding,
			stats:   newRouteStats(binding.Route),
		}
	}

	return &Registry{routes: entries, metadata: metadataHandlers}, nil
}

// validateBindings is a pure check over the declared handler set. It reports
// every violation it finds instead of stopping at the first one.
func validateBindings(routes []handlerspkg.RouteBinding, metadataHandlers []handlerspkg.MetadataBinding) []error {
	var violations []error

	seen := make(map[string]int, len(routes))
	for i, binding := range routes {
		if binding.Route == "" {
			violations = append(violations, fmt.Errorf("route handler %d: %w", i, errspkg.ErrRouteRequired))
		}
		if binding.Invoke == nil {
			violations = append(violations, fmt.Errorf("route %q (handler %d): %w", binding.Route, i, errspkg.ErrHandlerRequired))
		}
		if binding.Route != "" {
			if first, dup := seen[binding.Route]; dup {
				violations = append(violations, fmt.Errorf("duplicate route %q declared by handlers %d and %d", binding.Route, first, i))
				continue
			}
			seen[binding.Route] = i
		}
	}

	for i, binding := range metadataHandlers {
		if binding.Handler == nil {
			name := binding.Name
			if name == "" {
				name = "metadata-handler"
			}
			violations = append(violations, fmt.Errorf("metadata handler %d (%s): %w", i, name, errspkg.ErrHandlerRequired))
		}
	}

	return violations
}

// Resolve returns the entry for a route or a RouteNotFoundError naming it.
func (r *Registry) Resolve(route string) (*routeEntry, error) {
	entry, ok := r.routes[route]
	if !ok {
		return nil, &errspkg.RouteNotFoundError{Route: route}
	}
	return entry, nil
}

// MetadataHandlers returns the broadcast handlers in registration order.
func (r *Registry) MetadataHandlers() []handlerspkg.MetadataBinding {
	return r.metadata
}

// RouteInfos returns a stable, sorted snapshot of all registered routes.
func (r *Registry) RouteInfos() []RouteInfo {
	infos := make([]RouteInfo, 0, len(r.routes))
	for route, entry := range r.routes {
		infos = append(infos, RouteInfo{Route: route, Stats: entry.stats})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Route < infos[j].Route })
	return infos
}
