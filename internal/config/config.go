// Package config loads the daemon's YAML configuration files: a top-level
// watch key that is either a single mapping or a sequence of mappings,
// merged across the standard search path and any files passed with -c.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Watch is one configured root: the path to watch and the shell body
// executed when a file under it fires.
type Watch struct {
	Path string `yaml:"path"`
	Exec string `yaml:"exec"`
}

// Config is the fully merged configuration.
type Config struct {
	Watches []Watch
}

// watchList decodes the watch key's mapping-or-sequence duality: a single
// watch group, or a list of them.
type watchList []Watch

func (w *watchList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		var single Watch
		if err := value.Decode(&single); err != nil {
			return err
		}
		*w = []Watch{single}
	case yaml.SequenceNode:
		var list []Watch
		if err := value.Decode(&list); err != nil {
			return err
		}
		*w = list
	default:
		return errors.New("\"watch\" must be a mapping or a sequence of mappings")
	}
	return nil
}

type fileConfig struct {
	Watch watchList `yaml:"watch"`
}

// DefaultSearchPaths returns the standard configuration file locations, in
// load order: /etc/<name>.conf, then $HOME/.config/<name>.conf. Files that
// don't exist are silently skipped by Load.
func DefaultSearchPaths(executableName string) []string {
	paths := []string{filepath.Join("/etc", executableName+".conf")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", executableName+".conf"))
	}
	return paths
}

// Load reads and merges configuration files in order: the standard search
// path for executableName, followed by extraFiles (the -c files) in the
// order given. Watch groups are keyed by path; a later file's group is
// merged into an earlier one field-by-field, overriding only the fields it
// sets (an empty "exec" leaves a prior file's "exec" in place rather than
// blanking it). A file that does not exist is skipped; any other read or
// parse error is fatal.
func Load(executableName string, extraFiles []string) (*Config, error) {
	files := append(DefaultSearchPaths(executableName), extraFiles...)

	merged := make(map[string]Watch)
	var order []string

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "unable to read configuration file %q", path)
		}

		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, errors.Wrapf(err, "invalid configuration file %q", path)
		}

		for _, watch := range fc.Watch {
			if watch.Path == "" {
				return nil, errors.Errorf("configuration file %q: a watch entry is missing its required \"path\"", path)
			}
			existing, exists := merged[watch.Path]
			if !exists {
				order = append(order, watch.Path)
				merged[watch.Path] = watch
				continue
			}
			if watch.Exec != "" {
				existing.Exec = watch.Exec
			}
			merged[watch.Path] = existing
		}
	}

	result := &Config{}
	for _, path := range order {
		result.Watches = append(result.Watches, merged[path])
	}
	return result, nil
}
