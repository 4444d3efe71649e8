package common

// SessionCookieName is the cookie that carries the session token between
// the browser client and the HTTP API.
const SessionCookieName = "token"

// SessionMetadataKey is the gRPC metadata key used by sibling services to
// pass a session token on outbound requests.
const SessionMetadataKey = "session_token"

// ResetTokenBytes is the amount of entropy in a password reset token.
const ResetTokenBytes = 32
