package monitoring

import "log"

// Logf is the diagnostic logger shared by the reconstruction packages. It
// defaults to log.Printf; SetLogger swaps or mutes it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. A nil logger discards everything.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
