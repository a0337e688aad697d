package micro

import "github.com/google/uuid"

// UUIDIDGenerator is an opt-in IDGenerator that produces a random UUID
// (RFC 4122 v4) instead of the default crypto/rand hex token. Instance ids
// are opaque to the protocol (spec §3 Invariants), so either form is valid;
// this one is useful when operators want ids that paste cleanly into
// other UUID-keyed systems (tracing, inventory). cmd/micro's run/dev
// commands pass NATS_READABLE_ID=1 to the hosted service's environment when
// started with --readable-id; it is up to the service binary to read that
// variable and select this generator. No binary in this module reads it.
func UUIDIDGenerator() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
