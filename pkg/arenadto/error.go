package arenadto

// Rejection reasons produced at the protocol boundary.
const (
	ReasonBadRequest  = "bad_request"
	ReasonRateLimited = "rate_limited"
)

// DecodeError is returned for frames that fail shape validation.
type DecodeError struct {
	RequestID string
	Message   string
}

func (e DecodeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ReasonBadRequest
}
