// Package native is the boundary to the illumos libnvme control-plane library.
//
// Handles crossing this boundary are opaque integers. Package native does not
// track ownership or ordering; package nvme does. On illumos builds with cgo
// enabled, Default returns a binding to libnvme. Everywhere else Default
// returns a library that cannot open a session, and Supported reports false.
package native
