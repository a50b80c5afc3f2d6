// Package store persists users, password-reset tokens and revoked refresh
// tokens. Every check-then-act sequence on a single-use credential is a
// conditional UPDATE, so concurrent consumers of the same backup code or
// reset token cannot both succeed.
package store
