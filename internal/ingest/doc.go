// Package ingest connects contentfactory to NATS.
//
// A Subscriber turns metric submissions published on a subject into learner
// records; request-reply callers get an Ack back. An EventPublisher sends one
// RunCompleted event per controller run.
package ingest
