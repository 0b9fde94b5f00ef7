// Package provider defines the boundary to code generation backends.
//
// Every backend is reduced to a single capability: turn a prompt and a
// model name into text. The set of backends is closed ([Backend]); each
// variant lives in its own subpackage and is wired into a [Registry] by
// package backends.
package provider
