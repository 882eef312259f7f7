// Package mongo adapts the CosmosDB (Mongo API) collection written by the
// OPC-UA gateway into the document-source interface the monitor consumes:
// the latest document for polling mode and ascending _id batches for the
// change-feed mode. It is thin plumbing over the official Mongo driver; all
// operations are bounded by the configured fetch timeout.
package mongo
