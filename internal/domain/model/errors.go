package model

import "fmt"

// RemoteAPIError is returned by the outbound platform client. Code is the
// HTTP status of the failed call, or 0 when no response was received.
type RemoteAPIError struct {
	Code    int
	Message string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote api error [%d]: %s", e.Code, e.Message)
}
