package domain

import "errors"

var (
	// ErrCollectionNotFound is returned when a collection is not tracked in the store
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrTokenNotYetIndexed is returned when the indexer has not yet observed a
	// creation transaction. This is transient: the indexer may lag the chain.
	ErrTokenNotYetIndexed = errors.New("token not yet indexed")

	// ErrMetadataUnavailable is returned when a token's metadata URI cannot be fetched
	ErrMetadataUnavailable = errors.New("metadata unavailable")

	// ErrEngineClosed is returned when submitting work to a stopped dispatch engine
	ErrEngineClosed = errors.New("dispatch engine closed")

	// ErrUnknownJobClass is returned when submitting work for an unregistered job class
	ErrUnknownJobClass = errors.New("unknown job class")
)
