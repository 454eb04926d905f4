// Package messaging publishes messages to a broker behind one interface.
//
// Business code depends on Publisher only, so the broker (Kafka, NATS, NSQ,
// Google Pub/Sub) is picked by configuration. The none driver discards
// messages and the memory driver keeps them for inspection in tests.
package messaging
