// Package registry discovers installed modules, verifies their descriptors
// and dependency graph, and maintains the canonical command catalog the
// dispatcher resolves routes against.
package registry

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/modular-api/core/internal/models"
	"github.com/modular-api/core/internal/policyengine"
	"github.com/modular-api/core/internal/repository"
)

// Registry owns the installed-module set and the catalog built from it.
// Reads (Lookup, Meta, List) never block on a concurrent Install/Uninstall:
// the catalog is rebuilt off to the side and swapped in atomically.
type Registry struct {
	repo    repository.ModuleRepository
	catalog atomic.Pointer[models.Catalog]
}

// New builds a Registry backed by repo and loads its initial catalog from
// whatever modules are already recorded there (e.g. after a restart).
func New(ctx context.Context, repo repository.ModuleRepository) (*Registry, error) {
	r := &Registry{repo: repo}
	modules, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	cat := &models.Catalog{
		Modules:  make(map[string]*models.Module),
		Commands: make(map[string]*models.CommandMeta),
		Routes:   make(map[string]*models.CommandMeta),
	}
	for _, m := range modules {
		cat.Modules[m.ModuleName] = m
	}
	r.catalog.Store(cat)
	return r, nil
}

// Install parses descriptorPath, verifies its dependencies are satisfied
// and its mount point is free, then atomically swaps in a new catalog that
// includes the module's command tree.
func (r *Registry) Install(ctx context.Context, descriptorPath string) error {
	d, err := loadDescriptor(descriptorPath)
	if err != nil {
		return err
	}
	current := r.catalog.Load()

	for _, dep := range d.Dependencies {
		installed, ok := current.Modules[dep.ModuleName]
		if !ok || !versionAtLeast(installed.Version, dep.MinVersion) {
			return ErrDependencyMissing{Module: d.ModuleName, Dependency: dep.ModuleName, MinVersion: dep.MinVersion}
		}
	}
	for name, m := range current.Modules {
		if name != d.ModuleName && m.MountPoint == d.MountPoint {
			return ErrMountPointConflict{MountPoint: d.MountPoint, Existing: name}
		}
	}

	mod := &models.Module{
		ModuleName:   d.ModuleName,
		CLIPath:      d.CLIPath,
		MountPoint:   d.MountPoint,
		Dependencies: d.Dependencies,
		Version:      d.Version,
	}
	if err := r.repo.Install(ctx, mod); err != nil {
		return err
	}

	next := cloneCatalog(current)
	next.Modules[mod.ModuleName] = mod
	for key := range next.Commands {
		if cmd := next.Commands[key]; cmd.ModuleName == mod.ModuleName {
			delete(next.Commands, key)
		}
	}
	for _, cmd := range d.flatten() {
		next.Commands[mod.ModuleName+"."+joinPath(cmd.Path)] = cmd
		if cmd.IsCommand() && cmd.Route != nil {
			next.Routes[cmd.Route.Method+" "+cmd.Route.Path] = cmd
		}
	}
	r.catalog.Store(next)
	return nil
}

// Uninstall removes module moduleName from the repository and rebuilds the
// catalog without its commands.
func (r *Registry) Uninstall(ctx context.Context, moduleName string) error {
	current := r.catalog.Load()
	if _, ok := current.Modules[moduleName]; !ok {
		return ErrNotInstalled{Module: moduleName}
	}
	if err := r.repo.Uninstall(ctx, moduleName); err != nil {
		return err
	}
	next := cloneCatalog(current)
	delete(next.Modules, moduleName)
	for key, cmd := range next.Commands {
		if cmd.ModuleName == moduleName {
			delete(next.Commands, key)
		}
	}
	for key, cmd := range next.Routes {
		if cmd.ModuleName == moduleName {
			delete(next.Routes, key)
		}
	}
	r.catalog.Store(next)
	return nil
}

// Lookup resolves an inbound (method, path) pair to its Command Meta.
func (r *Registry) Lookup(method, path string) (*models.CommandMeta, error) {
	cat := r.catalog.Load()
	cmd, ok := cat.Routes[method+" "+path]
	if !ok {
		return nil, ErrNoSuchRoute{Method: method, Path: path}
	}
	return cmd, nil
}

// List returns every installed module.
func (r *Registry) List() []*models.Module {
	cat := r.catalog.Load()
	out := make([]*models.Module, 0, len(cat.Modules))
	for _, m := range cat.Modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleName < out[j].ModuleName })
	return out
}

// ModuleCatalog is the client-visible command catalog: module_name -> that
// module's Command Metas, sorted so terminal commands precede groups,
// lexicographically by path within each category.
type ModuleCatalog map[string][]*models.CommandMeta

// Meta returns the catalog filtered to commands the user's effective
// policies do not deny, ordered per the client-visible sort rule.
func (r *Registry) Meta(effectivePolicies []*models.Policy) ModuleCatalog {
	cat := r.catalog.Load()
	out := make(ModuleCatalog)
	for _, cmd := range cat.Commands {
		decision := policyengine.Evaluate(effectivePolicies, policyengine.Request{
			Module:   cmd.ModuleName,
			Resource: joinPath(cmd.Path),
		})
		if !decision.Allowed() {
			continue
		}
		out[cmd.ModuleName] = append(out[cmd.ModuleName], cmd)
	}
	for _, cmds := range out {
		sortCommands(cmds)
	}
	return out
}

// Describe returns every command belonging to moduleName, unfiltered by any
// caller's effective policies (unlike Meta). It serves the administrator
// CLI, which reads the catalog directly rather than through the dispatcher.
func (r *Registry) Describe(moduleName string) (*models.Module, []*models.CommandMeta, error) {
	cat := r.catalog.Load()
	mod, ok := cat.Modules[moduleName]
	if !ok {
		return nil, nil, ErrNotInstalled{Module: moduleName}
	}
	var cmds []*models.CommandMeta
	for _, cmd := range cat.Commands {
		if cmd.ModuleName == moduleName {
			cmds = append(cmds, cmd)
		}
	}
	sortCommands(cmds)
	return mod, cmds, nil
}

func sortCommands(cmds []*models.CommandMeta) {
	sort.Slice(cmds, func(i, j int) bool {
		if cmds[i].IsCommand() != cmds[j].IsCommand() {
			return cmds[i].IsCommand()
		}
		return joinPath(cmds[i].Path) < joinPath(cmds[j].Path)
	})
}

func cloneCatalog(c *models.Catalog) *models.Catalog {
	next := &models.Catalog{
		Modules:  make(map[string]*models.Module, len(c.Modules)),
		Commands: make(map[string]*models.CommandMeta, len(c.Commands)),
		Routes:   make(map[string]*models.CommandMeta, len(c.Routes)),
	}
	for k, v := range c.Modules {
		next.Modules[k] = v
	}
	for k, v := range c.Commands {
		next.Commands[k] = v
	}
	for k, v := range c.Routes {
		next.Routes[k] = v
	}
	return next
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}
