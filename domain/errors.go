package domain

import "errors"

var (
	// ErrInvalidPayload marks an unparseable or invalid bus message.
	// The message is dropped and counted, never retried.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrStorageUnavailable marks a transient storage failure. The
	// message stays unacknowledged so the bus redelivers it.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrReplicaConflict marks a CDC record that exhausted its apply
	// retries and was routed to the dead-letter table.
	ErrReplicaConflict = errors.New("replica apply conflict")

	// ErrAllSourcesUnavailable is returned when every candidate source
	// failed and no feed can be produced at all.
	ErrAllSourcesUnavailable = errors.New("all candidate sources unavailable")

	// ErrInvalidRequest marks a malformed ranking request.
	ErrInvalidRequest = errors.New("invalid request")
)
