// Package registry maps action types to the Go capabilities that execute
// them. Capability modules register their handlers in code; HCL manifests
// declare the corresponding input/output contracts; ValidateRegistry checks
// both sides agree before any plan is accepted.
package registry
