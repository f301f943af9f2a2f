package cfddns

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned before any cycle runs when required
	// configuration is missing or malformed.
	ErrInvalidConfig = errors.New("invalid configuration")

	ErrCredentialInvalid = errors.New("cloudflare rejected the api token")
	ErrZoneInvalid       = errors.New("zone is not accessible with the configured token")
	ErrRecordInvalid     = errors.New("record does not exist in the configured zone")

	// ErrMissingContent is returned when a record read succeeds but the
	// response carries no content field.
	ErrMissingContent = errors.New("record response contains no content")

	// ErrNoIPSource is returned when every public IP source failed or
	// returned something other than an IPv4 address.
	ErrNoIPSource = errors.New("no public ip source returned a usable address")

	ErrWriteRejected = errors.New("cloudflare rejected the record update")
)

// StatusError reports a non-success HTTP status from the Cloudflare API,
// keeping the provider's status text for diagnostics.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cloudflare: %s returned %s", e.Op, e.Status)
}

// RecordInvalidError is the failure for a record ID that does not resolve to
// a record in the zone. Listing holds the zone's records when the diagnostic
// listing succeeded; ListErr holds the listing's own failure otherwise. The
// listing is advisory and never changes the primary failure.
type RecordInvalidError struct {
	Listing []Record
	ListErr error
}

func (e *RecordInvalidError) Error() string {
	if e.ListErr != nil {
		return fmt.Sprintf("%s (listing zone records also failed: %s)", ErrRecordInvalid, e.ListErr)
	}
	return fmt.Sprintf("%s (%d records found in zone)", ErrRecordInvalid, len(e.Listing))
}

func (e *RecordInvalidError) Unwrap() error { return ErrRecordInvalid }
