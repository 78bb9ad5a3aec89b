package registry

import "fmt"

// ErrInvalidDescriptor reports a module descriptor missing a required field
// or failing to parse.
type ErrInvalidDescriptor struct {
	Path   string
	Reason string
}

func (e ErrInvalidDescriptor) Error() string {
	return fmt.Sprintf("invalid descriptor %s: %s", e.Path, e.Reason)
}

// ErrDependencyMissing reports that a module's declared dependency is not
// installed, or is installed below the required minimum version.
type ErrDependencyMissing struct {
	Module     string
	Dependency string
	MinVersion string
}

func (e ErrDependencyMissing) Error() string {
	return fmt.Sprintf("module %s requires %s >= %s", e.Module, e.Dependency, e.MinVersion)
}

// ErrMountPointConflict reports that a module's mount point collides with
// an already-installed module.
type ErrMountPointConflict struct {
	MountPoint string
	Existing   string
}

func (e ErrMountPointConflict) Error() string {
	return fmt.Sprintf("mount point %s already used by module %s", e.MountPoint, e.Existing)
}

// ErrNotInstalled reports that uninstall was called for a module that is
// not currently installed.
type ErrNotInstalled struct {
	Module string
}

func (e ErrNotInstalled) Error() string {
	return fmt.Sprintf("module %s is not installed", e.Module)
}

// ErrNoSuchRoute reports that no Command Meta matches a (method, path)
// lookup.
type ErrNoSuchRoute struct {
	Method string
	Path   string
}

func (e ErrNoSuchRoute) Error() string {
	return fmt.Sprintf("no route for %s %s", e.Method, e.Path)
}
