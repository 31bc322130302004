// Package tempfiles owns the on-disk lifecycle of per-job artifacts.
//
// Every pipeline run opens a Scope, a private directory under the temp root
// named after the job ID, and acquires uniquely named Handles inside it for
// downloaded media and extracted audio. ReleaseAll removes the directory on
// every exit path so concurrent jobs never collide and never leak disk.
// Sweep and Remove are housekeeping for artifacts orphaned by crashes.
package tempfiles
