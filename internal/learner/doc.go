// Package learner turns post-publication metrics into performance records
// and promotes high scoring artifacts into the style examples collection.
//
// Metrics arrive out of band (HTTP, NATS or MCP). Each submission is scored
// with a fixed weighted formula, stored in the performance collection, and
// evaluated for promotion. Promotion copies the artifact's history record;
// the history record itself is never changed. Performance records older
// than the retention window are removed by a scheduled sweep.
package learner
