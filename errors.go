package micro

import "errors"

// Sentinel errors returned by this package. Use errors.Is to check for them.
var (
	// ErrConfigValidation signals that a service or group configuration
	// failed validation.
	ErrConfigValidation = errors.New("validation error")

	// ErrVerbNotSupported is returned by ControlSubject when given an
	// unrecognized Verb.
	ErrVerbNotSupported = errors.New("verb not supported")

	// ErrServiceNameRequired is returned by ControlSubject when an id is
	// given without a service name.
	ErrServiceNameRequired = errors.New("service name is required when id is provided")

	// ErrRespond is returned when a reply could not be published, usually
	// because the underlying connection is closed.
	ErrRespond = errors.New("error responding to request")

	// ErrMarshalResponse is returned when a response payload could not be
	// marshaled to JSON.
	ErrMarshalResponse = errors.New("error marshaling response")

	// ErrArgRequired is returned when a required argument is missing, such
	// as the endpoint name passed to AddEndpoint.
	ErrArgRequired = errors.New("argument required")

	// ErrServiceStopped is returned by AddEndpoint, called on the service
	// or through one of its groups, once Stop has been called on a service.
	// AddGroup itself does not check it.
	ErrServiceStopped = errors.New("cannot add endpoint to a stopped service")

	// ErrHandlerRequired is returned when an endpoint is registered with a
	// nil handler.
	ErrHandlerRequired = errors.New("endpoint handler is required")

	// ErrAddressMismatch is returned by the typed layer when an address
	// template's placeholders do not exactly cover the declared parameter
	// fields.
	ErrAddressMismatch = errors.New("address parameters mismatch")
)
