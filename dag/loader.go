package dag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/mediaflow/errors"
)

// Loader loads pipeline configurations by name.
type Loader interface {
	Load(name string) (*PipelineConfig, error)
	List() ([]string, error)
}

// extensions are tried in order. JSON is parsed by the YAML decoder.
var extensions = []string{".yaml", ".yml", ".json"}

// FileLoader loads pipelines from files named <name>.yaml, .yml or .json
// in its directories or their immediate subdirectories.
type FileLoader struct {
	dirs []string
}

// NewFileLoader creates a loader searching dirs in order.
func NewFileLoader(dirs ...string) *FileLoader {
	return &FileLoader{dirs: dirs}
}

// Load finds the named pipeline and resolves its includes.
func (l *FileLoader) Load(name string) (*PipelineConfig, error) {
	return l.load(name, make(map[string]bool))
}

func (l *FileLoader) load(name string, stack map[string]bool) (*PipelineConfig, error) {
	if stack[name] {
		return nil, configError(ErrCycle, "circular include of pipeline %q", name).WithDetail("pipeline", name)
	}
	stack[name] = true
	defer delete(stack, name)

	path, ok := l.find(name)
	if !ok {
		return nil, errors.NotFound("pipeline", name).WithDetail("dirs", l.dirs)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, inc := range cfg.Includes {
		sub, err := l.load(inc, stack)
		if err != nil {
			return nil, err
		}
		mergeInclude(cfg, sub)
	}
	return cfg, nil
}

func (l *FileLoader) find(name string) (string, bool) {
	for _, dir := range l.dirs {
		for _, ext := range extensions {
			path := filepath.Join(dir, name+ext)
			if isFile(path) {
				return path, true
			}
			matches, _ := filepath.Glob(filepath.Join(dir, "*", name+ext))
			for _, m := range matches {
				if isFile(m) {
					return m, true
				}
			}
		}
	}
	return "", false
}

// List returns the sorted names of every pipeline file the loader can see.
func (l *FileLoader) List() ([]string, error) {
	seen := make(map[string]bool)
	for _, dir := range l.dirs {
		for _, pattern := range []string{"*", filepath.Join("*", "*")} {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if name, ok := pipelineName(m); ok && isFile(m) {
					seen[name] = true
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadFile reads one pipeline file. Includes are not resolved.
func LoadFile(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dag: reading %s: %w", path, err)
	}
	name, _ := pipelineName(path)
	return Parse(data, name)
}

// Parse decodes a YAML or JSON pipeline. An unnamed pipeline takes
// defaultName.
func Parse(data []byte, defaultName string) (*PipelineConfig, error) {
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, configError(ErrInvalidPipeline, "parsing pipeline %q: %v", defaultName, err).
			WithDetail("pipeline", defaultName)
	}
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	return &cfg, nil
}

// mergeInclude copies what sub defines and cfg does not.
func mergeInclude(cfg, sub *PipelineConfig) {
	if cfg.Enumerator == nil && sub.Enumerator != nil {
		e := *sub.Enumerator
		cfg.Enumerator = &e
	}
	if cfg.Schema == "" {
		cfg.Schema = sub.Schema
	}
	if len(sub.Operators) > 0 && cfg.Operators == nil {
		cfg.Operators = make(map[string]OperatorDefinition, len(sub.Operators))
	}
	for k, v := range sub.Operators {
		if _, ok := cfg.Operators[k]; !ok {
			cfg.Operators[k] = v
		}
	}
	if len(sub.Operations) > 0 && cfg.Operations == nil {
		cfg.Operations = make(map[string]OperationEdge, len(sub.Operations))
	}
	for k, v := range sub.Operations {
		if _, ok := cfg.Operations[k]; !ok {
			cfg.Operations[k] = v
		}
	}
	for k, v := range sub.Context.Parameters {
		if cfg.Context.Parameters == nil {
			cfg.Context.Parameters = make(Parameters)
		}
		if _, ok := cfg.Context.Parameters[k]; !ok {
			cfg.Context.Parameters[k] = v
		}
	}
}

func pipelineName(path string) (string, bool) {
	base := filepath.Base(path)
	for _, ext := range extensions {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext), true
		}
	}
	return base, false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
