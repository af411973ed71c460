// Package extract locates the code block an agent wants to run inside its
// reply. The delimiter convention is fixed: the first fence that is directly
// followed by a language tag opens the block and the next fence closes it.
//
// Scan never fails with a panic; a reply either yields a Block, has no fence at
// all (a plain answer), or is Malformed with a typed error.
package extract
