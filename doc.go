// Package svsim implements a cycle-based simulator for a bounded subset
// of SystemVerilog: a parser for the accepted grammar, a module resolver
// and cache that loads dependencies lazily from the filesystem, a
// bit-vector value model, and combinational and sequential evaluators.
//
// Simulation enters through TruthTable, for combinational modules, or
// StepSequential (typically driven by RunSequentialTests), for modules
// containing always_ff blocks. Both recurse through a Cache to resolve
// child instances and report errors as *Error values carrying a Kind and
// a Location.
package svsim
