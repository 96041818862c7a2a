/*
Package session runs game sessions behind a per-session FIFO queue.

Submissions for one session are applied strictly one at a time, in the order
they were queued, regardless of how many goroutines or replicas submit them.
Each job loads the snapshot, resolves the accepted artifacts, runs the engine
and persists the result. A distributed locker can extend the guarantee across
processes.
*/
package session
