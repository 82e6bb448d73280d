// Package tilerdev binds the tiler.Driver interface to the TILER kernel driver through ioctl requests
// and mmap on its device node.
package tilerdev

// DefaultPath is the device node the TILER driver registers
const DefaultPath = "/dev/tiler"
