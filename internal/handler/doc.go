// Package handler implements the HTTP surface of the status backend: the
// JSON status and system endpoints, a server-rendered status page, and the
// router that instruments them.
package handler
