// Package config defines the format-agnostic configuration model for the
// engine: capability manifests, decomposition rulebooks and permission
// policies, along with the Loader interface for reading them from disk.
//
// The config.Model is the single source of truth for the decompose and
// registry packages. The concrete HCL implementation lives in internal/hcl.
package config
