// Package types defines the Store and Table interfaces, the entity types for
// models, objects, attributes and relationships at every modeling layer, and
// the standard error values shared by the store, the synchronization engine
// and the CLI.
package types
