// Package stability guards against reading files a producer is still
// writing. See Detector for the size-observation policy.
package stability
