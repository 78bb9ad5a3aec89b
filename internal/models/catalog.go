package models

// Catalog is the canonical, atomically-swapped mapping built by the module
// registry: (module_name, full command path) -> Command Meta. It also
// indexes commands by route so the dispatcher can resolve an inbound
// (method, path) pair in O(1).
type Catalog struct {
	Modules  map[string]*Module
	Commands map[string]*CommandMeta // key: module_name + "." + Path
	Routes   map[string]*CommandMeta // key: method + " " + route path
}
