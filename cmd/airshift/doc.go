// Command airshift records time-shifted radio programs: one-shot captures,
// queue management, and a foreground daemon mode.
package main
