// Package jwt manages access-token issuance and verification using configured signing keys
// and strict validation semantics suitable for low-latency authentication paths.
//
// Access tokens are short-lived, stateless, and carry the authenticated user ID,
// the optional device ID the session is bound to, and a mandatory
// token_use=access claim that prevents refresh or foreign tokens from being
// accepted on protected routes.
package jwt
