// Package ssa builds the static single assignment form of a function.
//
// Every location gets a node holding the equalities it introduces (guard,
// phi, transfer and condition definitions) and the constraints it contributes
// (guard implications and assertion obligations). Object versions are named
// by Name, reads are resolved through a DefinitionOracle, and control flow is
// combined into guard symbols through a GuardOracle. Loop heads are handled
// with loop-select placeholders that are constrained once the back edge's
// source has been built, so a single pass in location order suffices.
package ssa
