package policy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/edelagziel/SkyWatch/internal/model"
)

// Repository supplies the enabled rule set for an evaluation scope. The
// implementation decides what scoping means: a static repository ignores
// it, a dynamic one may apply per-account or per-type policy.
type Repository interface {
	EnabledRules(resourceType model.ResourceType, accountID string) ([]model.RuleConfig, error)
}

// StaticRepository serves a fixed list of rule configs, filtered to the
// enabled ones. Scoping arguments are ignored; the caller supplies the
// right set.
type StaticRepository struct {
	configs []model.RuleConfig
}

// NewStaticRepository creates a repository over a fixed config list.
func NewStaticRepository(configs []model.RuleConfig) *StaticRepository {
	return &StaticRepository{configs: configs}
}

func (r *StaticRepository) EnabledRules(resourceType model.ResourceType, accountID string) ([]model.RuleConfig, error) {
	enabled := make([]model.RuleConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	return enabled, nil
}

// cachedConfigs is a parsed policy document plus the mtime it was parsed
// at, so edits on disk invalidate the entry.
type cachedConfigs struct {
	modTime int64
	configs []model.RuleConfig
}

// FileRepository loads a policy configuration document (JSON or YAML,
// by extension) from disk on each call, with an LRU cache keyed by
// path+mtime so repeated evaluations do not re-read or re-parse an
// unchanged file.
type FileRepository struct {
	path   string
	cache  *lru.Cache[string, cachedConfigs]
	logger *slog.Logger
}

// NewFileRepository creates a file-backed repository for the given policy
// document path.
func NewFileRepository(path string, logger *slog.Logger) *FileRepository {
	cache, _ := lru.New[string, cachedConfigs](8)
	return &FileRepository{
		path:   path,
		cache:  cache,
		logger: logger,
	}
}

func (r *FileRepository) EnabledRules(resourceType model.ResourceType, accountID string) ([]model.RuleConfig, error) {
	configs, err := r.load()
	if err != nil {
		return nil, err
	}
	enabled := make([]model.RuleConfig, 0, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	return enabled, nil
}

func (r *FileRepository) load() ([]model.RuleConfig, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat policy file: %w", err)
	}
	modTime := info.ModTime().UnixNano()

	if entry, ok := r.cache.Get(r.path); ok && entry.modTime == modTime {
		return entry.configs, nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var configs []model.RuleConfig
	switch strings.ToLower(filepath.Ext(r.path)) {
	case ".yaml", ".yml":
		configs, err = model.ParseRuleConfigsYAML(data)
	case ".json":
		configs, err = model.ParseRuleConfigs(data)
	default:
		return nil, fmt.Errorf("unsupported policy file extension: %s", filepath.Ext(r.path))
	}
	if err != nil {
		return nil, err
	}

	r.cache.Add(r.path, cachedConfigs{modTime: modTime, configs: configs})
	r.logger.Debug("Loaded policy document", "path", r.path, "rules", len(configs))

	return configs, nil
}
