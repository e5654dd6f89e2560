// Package panel talks to the tenant admin panel that issues operator sessions.
package panel
