// Package pyresolve reverse-engineers a CPython interpreter's private
// allocator metadata (the pymalloc arena table and pool geometry) and its
// fundamental type objects (type, object, dict, str) from a process core
// dump, without any debug symbols. It then enumerates every statically and
// dynamically allocated type object and every non-empty garbage-collection
// tracking list.
//
// A Resolver is single-shot: construct it with New, call Resolve exactly
// once, then use the read-only accessors. Calling Resolve twice, or before
// the injected ModuleDirectory is itself resolved, is a precondition
// violation and panics with a PreconditionError.
//
// Resolver never interprets live object contents beyond what's needed to
// anchor offsets, never mutates the dump, and only understands the two
// canonical major interpreter versions (legacy "V2" and current "V3") --
// anything else is handled by falling back to trial-and-validate discovery.
package pyresolve
