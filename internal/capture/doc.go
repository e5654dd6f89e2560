// Package capture turns a raw photo, an optional position and the operator
// session into a stamped evidence.Capture.
package capture
