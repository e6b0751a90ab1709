// Package assemble merges fetched segments into a single contiguous stream
// file, spooling out-of-order arrivals to disk and tolerating gaps.
package assemble
