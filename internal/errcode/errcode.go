package errcode

// Error code convention for worker status messages:
// - 0: no error
// - 4xxx: recoverable/warning class (a pass can continue)
// - 5xxx: system errors (the pass is aborted)
const (
	OK              = 0
	ResourceMissing = 4004
	SystemError     = 5000
)
