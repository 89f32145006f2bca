package uploader

import "fmt"

// Class identifies the terminal classification of one file's upload attempt.
type Class int

const (
	// ClassSuccess is a response with a 2xx status.
	ClassSuccess Class = iota
	// ClassRead means the file could not be read.
	ClassRead
	// ClassTransport covers connect, send, receive, and timeout failures.
	ClassTransport
	// ClassHTTP is a response with a non-2xx status.
	ClassHTTP
)

// Outcome is produced exactly once per file. Non-success outcomes are
// recorded in the failure log and never abort the run.
type Outcome struct {
	Class  Class
	Status int   // set for ClassHTTP
	Err    error // set for ClassRead and ClassTransport
}

func successOutcome() Outcome {
	return Outcome{Class: ClassSuccess}
}

func readOutcome(err error) Outcome {
	return Outcome{Class: ClassRead, Err: err}
}

func transportOutcome(err error) Outcome {
	return Outcome{Class: ClassTransport, Err: err}
}

func httpOutcome(status int) Outcome {
	return Outcome{Class: ClassHTTP, Status: status}
}

// OK reports whether the upload succeeded.
func (o Outcome) OK() bool {
	return o.Class == ClassSuccess
}

// Detail renders the failure description recorded in the failure log.
func (o Outcome) Detail(path string) string {
	switch o.Class {
	case ClassHTTP:
		return fmt.Sprintf("HTTP %d for %s", o.Status, path)
	case ClassTransport:
		return fmt.Sprintf("ERR %v for %s", o.Err, path)
	case ClassRead:
		return fmt.Sprintf("READ_ERR %v for %s", o.Err, path)
	default:
		return ""
	}
}
