package auth

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers bad signatures, malformed payloads, expiry and wrong token type.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthenticated means no principal could be resolved for the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the principal lacks every required role.
	ErrForbidden = errors.New("insufficient role")
	// ErrDependencyUnavailable means the user store could not answer.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrEmailTaken is returned by Register for a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidInput is returned for empty or malformed account input.
	ErrInvalidInput = errors.New("invalid input")
)

// TokenReason classifies why a token was rejected. It is never shown to callers.
type TokenReason string

const (
	ReasonMalformed TokenReason = "malformed"
	ReasonSignature TokenReason = "signature"
	ReasonExpired   TokenReason = "expired"
	ReasonWrongType TokenReason = "wrong_type"
)

// TokenError is the concrete error behind ErrInvalidToken.
// errors.Is(err, ErrInvalidToken) holds for every TokenError.
type TokenError struct {
	Reason TokenReason
	Err    error
}

func (e *TokenError) Error() string {
	return ErrInvalidToken.Error()
}

func (e *TokenError) Is(target error) bool {
	return target == ErrInvalidToken
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the rejection reason carried by err, or "" when err is not a TokenError.
func ReasonOf(err error) TokenReason {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}
