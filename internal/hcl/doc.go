// Package hcl implements config.Loader on top of HCL v2. Descriptors
// are parsed with hclparse and decoded into the schema structs via
// gohcl; malformed files degrade to warnings and empty descriptors so
// one broken directory cannot take down the whole tree.
package hcl
