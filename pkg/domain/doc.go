// Package domain defines the record types, enumerations, events, errors and
// rule primitives shared by the within-host malaria model and the layers that
// drive, persist and observe it.
//
// Types in this package are plain values: they carry no behaviour beyond
// parsing, formatting and validation, so they can cross package boundaries and
// be serialized without dragging simulation state along.
package domain
