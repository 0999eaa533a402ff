// Package assembler groups classified lines into annotation blocks and pairs
// each block with the declaration that immediately follows it.
//
// A blank line or any non-annotation line ends the open block. A block
// ended that way documents nothing: it is kept as an orphan and reported
// with a PairingError, unless it only carries file-level content (a meta
// tag or aliases). A declaration with no block before it is still paired,
// with a nil Block.
package assembler
