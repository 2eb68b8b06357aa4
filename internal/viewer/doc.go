// Package viewer holds the live-visualisation state of the odometry
// pipeline and the render loop that draws it.
//
// Estimator goroutines call the Push* methods on a shared *State. Each
// data category (raw trajectory, windowed trajectory, orientation,
// landmarks, loop links, full-BA trajectory) sits behind its own mutex
// with a readiness flag, so producers of one category never wait on
// another. A single Loop goroutine snapshots whatever is committed once
// per frame, releases the lock, and only then hands the copy to the Host.
//
// Lock order, for the few operations that take more than one category
// lock: orientation, windowed trajectory, raw trajectory.
package viewer
