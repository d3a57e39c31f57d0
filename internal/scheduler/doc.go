// Package scheduler fires an action at wall-clock occurrences such as
// "mon 08:15". It polls an injectable Clock at a coarse interval, launches the
// action in its own goroutine so a slow round never delays the next check, and
// does not catch up on occurrences missed while the process was down.
package scheduler
