// Package params provides parameter schemas and validated parameter values.
//
// A Type maps component names to array shapes. A Value assigns an Array to
// every component of a Type and is produced by Type.Parse. Composite objects
// derive their Type from the types of the entities they are built from with
// BuildScheme, and project their full Value down to each sub-entity with
// Scheme.Map.
package params
