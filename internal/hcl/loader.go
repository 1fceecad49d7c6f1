// Package hcl is the HCL-specific implementation of the config.Loader
// interface. It discovers .hcl files, decodes the raw block schemas and
// translates them into the format-agnostic config model.
package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/intentflow/internal/config"
	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/fsutil"
	"github.com/vk/intentflow/internal/schema"
)

// Loader loads capability manifests, rulebooks and permission policies
// from HCL files.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load orchestrates the entire HCL loading process. It is agnostic to the
// origin of the paths and accepts any valid top-level block from any file.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := config.NewModel()

	var hclFiles []string
	seen := make(map[string]struct{})
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("error scanning path %s: %w", path, err)
		}
		for _, f := range found {
			if _, dup := seen[f]; !dup {
				hclFiles = append(hclFiles, f)
				seen[f] = struct{}{}
			}
		}
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root schema.FileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, capBlock := range root.Capabilities {
			def, err := l.translateCapability(ctx, capBlock)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
			if _, dup := model.Capabilities[def.Type]; dup {
				return nil, fmt.Errorf("in %s: duplicate capability manifest for type %q", file, def.Type)
			}
			model.Capabilities[def.Type] = def
		}
		for _, ruleBlock := range root.Rules {
			rule, err := l.translateRule(ctx, ruleBlock)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
			if _, dup := model.Rules[rule.Category]; dup {
				return nil, fmt.Errorf("in %s: duplicate rule for category %q", file, rule.Category)
			}
			model.Rules[rule.Category] = rule
		}
		for _, permBlock := range root.Permissions {
			policy, err := translatePermission(permBlock)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
			model.Permissions[policy.Type] = policy
		}
	}

	logger.Debug("HCL loading complete.",
		"capabilities", len(model.Capabilities),
		"rules", len(model.Rules),
		"permissions", len(model.Permissions),
	)
	return model, nil
}
