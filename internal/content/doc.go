// Package content maps URL paths to content producers.
//
// Resolution runs in two tiers. The first tier is an ordered route table
// with case-insensitive longest-prefix matching; ties go to the earliest
// registration. The second tier is an ordered list of embedded directories,
// each stripping the matched prefix and rejoining the remainder under a
// local root; the first file that opens wins. If neither tier matches the
// not-found responder fires.
//
// Registration is expected to finish before concurrent resolution begins;
// resolution itself is safe from any number of goroutines.
package content
