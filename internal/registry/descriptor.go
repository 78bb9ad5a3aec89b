package registry

import (
	"os"

	"github.com/modular-api/core/internal/models"
	"gopkg.in/yaml.v3"
)

// descriptor is the on-disk YAML shape of a module install file. It embeds
// the command tree directly rather than requiring the registry to execute
// the module's entry point to introspect it: the entry point still owns the
// tree, but publishes it declaratively for install-time verification.
type descriptor struct {
	ModuleName   string              `yaml:"module_name"`
	CLIPath      string              `yaml:"cli_path"`
	MountPoint   string              `yaml:"mount_point"`
	Version      string              `yaml:"version"`
	Dependencies []models.Dependency `yaml:"dependencies"`
	Commands     []commandNode       `yaml:"commands"`
}

type commandNode struct {
	Name       string             `yaml:"name"`
	Kind       string             `yaml:"kind"` // "command" or "group"
	Parameters []models.Parameter `yaml:"parameters"`
	Route      *models.Route      `yaml:"route"`
	Describe   bool               `yaml:"describe"`
	Children   []commandNode      `yaml:"children"`
}

func loadDescriptor(path string) (*descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, ErrInvalidDescriptor{Path: path, Reason: err.Error()}
	}
	if d.ModuleName == "" || d.CLIPath == "" || d.MountPoint == "" {
		return nil, ErrInvalidDescriptor{Path: path, Reason: "module_name, cli_path and mount_point are required"}
	}
	return &d, nil
}

// flatten walks the descriptor's command tree, producing one CommandMeta per
// node with a module-relative Path.
func (d *descriptor) flatten() []*models.CommandMeta {
	var out []*models.CommandMeta
	var walk func(nodes []commandNode, prefix []string)
	walk = func(nodes []commandNode, prefix []string) {
		for _, n := range nodes {
			path := append(append([]string{}, prefix...), n.Name)
			kind := models.KindCommand
			if n.Kind == "group" {
				kind = models.KindGroup
			}
			out = append(out, &models.CommandMeta{
				ModuleName: d.ModuleName,
				Path:       path,
				Kind:       kind,
				Parameters: n.Parameters,
				Route:      n.Route,
				Describe:   n.Describe,
			})
			if len(n.Children) > 0 {
				walk(n.Children, path)
			}
		}
	}
	walk(d.Commands, nil)
	return out
}
