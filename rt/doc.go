// Package rt defines the runtime value model shared by the interpreter and
// the host runtime.
//
// This package contains:
//   - Boxed value representations (integers, floats, pointers, refs, tuples, structs)
//   - Type descriptors and type-variable instantiation
//   - Modules, methods and method instances
//   - Error kinds raised by the interpreter and the host
//   - Collaborator interfaces the interpreter consumes from its host
package rt
