// Package ir provides the typed scalar values carried by query literals,
// predicates and storage conditions.
//
// This package imports nothing internal. Every other package that needs a
// literal value depends on ir, which keeps it the foundational layer.
//
// Key constraints:
//   - Value is sealed; only the types in this package implement it
//   - Dates carry no clock component and are always UTC
//   - DateTimes are normalised to UTC
//   - Lists are flat; a List never contains another List
package ir
