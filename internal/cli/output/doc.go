// Package output renders command results as a table, JSON or YAML.
//
// Structs render field by field, slices of structs as one row per element
// and maps as sorted key/value rows. Field names come from json tags; a
// `table:"-"` tag hides a field and `table:"bytes"` renders an integer as a
// human-readable size.
package output
