package contextx

// Key is a private type to avoid collisions in request context keys.
type Key string

// ClaimsKey is the context key under which the verified session claims are stored.
const ClaimsKey Key = "sessionClaims"

// SessionTokenKey is the context key for the raw session token of the request.
const SessionTokenKey Key = "sessionToken"
