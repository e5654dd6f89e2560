// Package session manages the operator session that authorizes uploads.
//
// An operator links the device by exchanging a one-time code at the admin
// panel. The grant is persisted under the data directory with owner-only
// permissions. A session is unlocked only when the token's uid claim names the
// operator the panel returned and a tenant is present; uploads refuse to run
// otherwise.
package session
