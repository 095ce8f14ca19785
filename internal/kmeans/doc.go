// Package kmeans reduces a flat buffer of fixed-dimension points to K clusters.
//
// A run seeds K centroids with distance-weighted (k-means++) sampling and then
// repeats four passes until no centroid coordinate changes:
//
//	assign      nearest centroid per point (ties go to the lowest index)
//	accumulate  per-cluster counts and sums, worker-private then merged under a mutex
//	update      centroid = sum / count; clusters with no points keep their coordinates
//	compare     exact equality against the previous centroids
//
// Every pass is partitioned over index ranges and run fork-join. An Engine keeps
// no state between runs, so each frame is clustered from scratch.
package kmeans
