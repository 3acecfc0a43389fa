// Package httputil provides the JSON response helpers shared by the stub
// API handlers.
package httputil
