package handlers

const (
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 1 << 20

	ErrInvalidJSON           = "Invalid JSON body."
	ErrUnauthorized          = "Unauthorized."
	ErrInvalidToken          = "Invalid or expired token."
	ErrIdentityNotConfigured = "Identity verification not configured."
	ErrTooManyRequests       = "Too many requests."
	ErrInternalServerError   = "Internal server error."
)
