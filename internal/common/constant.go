package common

// AccessTokenParamName is the query parameter (and header) that carries the
// access token on the WebSocket handshake.
const AccessTokenParamName = "access_token"

// MaxFileSize is the largest attachment, in bytes, the relay accepts.
const MaxFileSize = 10 * 1024 * 1024
