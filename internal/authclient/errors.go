package authclient

// NetworkErrorMessage is reported when the login service cannot be reached
const NetworkErrorMessage = "Network Error"

// RejectedError is returned when the login service answers success=false.
// Its message is the one sent by the service.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// RequestError is returned for transport failures, non-2xx responses and
// undecodable bodies
type RequestError struct {
	Message    string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
