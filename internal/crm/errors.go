package crm

import "fmt"

// AuthError indicates that the CRM rejected our credentials: the login
// call itself failed, or a data call still came back unauthorized after
// the single forced re-login.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("crm auth failed: status %d: %s", e.Status, truncate(e.Body))
	}
	return fmt.Sprintf("crm auth failed: %s", truncate(e.Body))
}

// HTTPError carries a non-2xx response that survived the retry policy.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("crm request failed: status %d: %s", e.Status, truncate(e.Body))
}

// MissingFieldError reports a response envelope that matched none of the
// known id shapes.
type MissingFieldError struct {
	Field   string
	Payload string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("crm response missing %q: %s", e.Field, truncate(e.Payload))
}

func truncate(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
