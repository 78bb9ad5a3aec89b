package models

// Dependency pins a module's requirement on another module's minimum version.
type Dependency struct {
	ModuleName string `json:"module_name" yaml:"module_name"`
	MinVersion string `json:"min_version" yaml:"min_version"`
}

// Module is the installed descriptor for one backend module, loaded from its
// YAML descriptor file and recorded in the registry on install.
type Module struct {
	ModuleName   string       `json:"module_name" yaml:"module_name" db:"module_name"`
	CLIPath      string       `json:"cli_path" yaml:"cli_path" db:"cli_path"`
	MountPoint   string       `json:"mount_point" yaml:"mount_point" db:"mount_point"`
	Dependencies []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty" db:"-"`
	Version      string       `json:"version" yaml:"version" db:"version"`
}
