// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Every error body uses ErrorResponse so clients see one envelope.
package httputil
