// Package sync implements the subscription change pipeline: intake of
// lifecycle events, normalization of media kinds, duplicate suppression,
// payload assembly, delivery to the remote endpoint, and the one-shot
// backfill reconciler.
package sync
