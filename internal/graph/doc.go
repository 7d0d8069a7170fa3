// Package graph maintains and queries the project call graph.
//
// Call sites arrive from the parser as name references, not resolved
// targets. Indexing records same-file calls as edges immediately and
// defers everything else as unresolved. ResolvePending then links pending
// sites against the full symbol table; a callee name that matches several
// symbols links to all of them, so the graph is a multigraph that
// preserves ambiguity instead of guessing.
//
// Sites that never resolve are normal: they point at standard library or
// third-party code outside the index. They stay queryable so "what does X
// call" can still report them.
//
// Queries distinguish two empty cases. A name absent from the index yields
// ErrNotIndexed; an indexed function that nothing calls (or that calls
// nothing) yields an empty result.
//
// Edges reference symbol rows without foreign keys. Re-indexing a file
// replaces its symbols and orphans edges into the old rows; queries join
// through the symbol table so orphans never surface, and Prune reclaims
// them lazily.
package graph
