package domain

// Kind classifies an Error for translation at the transport boundary.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindAuth
	KindUnauthenticated
	KindForbidden
	KindUnavailable
	KindRateLimited
)

// Error is a domain error whose Message is part of the public contract and is
// rendered to clients verbatim.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrCredentialsRequired = newError(KindValidation, "username and password required")
	ErrUsernameTooShort    = newError(KindValidation, "Username must be at least 3 characters")
	ErrPasswordTooShort    = newError(KindValidation, "Password must be at least 6 characters")
	ErrPasswordTooLong     = newError(KindValidation, "Password must be at most 72 bytes")

	ErrUserExists = newError(KindConflict, "username already exists")

	ErrInvalidCredentials = newError(KindAuth, "Invalid credentials")

	ErrUnauthorized = newError(KindUnauthenticated, "Unauthorized")
	ErrInvalidToken = newError(KindForbidden, "Invalid or expired token")
	ErrForbidden    = newError(KindForbidden, "Forbidden: insufficient role")

	ErrStoreUnavailable = newError(KindUnavailable, "Service temporarily unavailable")
	ErrTooManyAttempts  = newError(KindRateLimited, "Too many attempts, try again later")
)

// ErrUserNotFound is returned by repositories when no record matches. It never
// reaches clients: the auth service folds it into ErrInvalidCredentials.
var ErrUserNotFound = newError(KindAuth, "user not found")
