package transcript

// ErrorKind classifies a ValidationError.
type ErrorKind string

const (
	MissingBody       ErrorKind = "missing_body"
	MissingTranscript ErrorKind = "missing_transcript"
)

var (
	ErrMissingBody       = &ValidationError{Kind: MissingBody}
	ErrMissingTranscript = &ValidationError{Kind: MissingTranscript}
)

// ValidationError reports a webhook body that cannot become an Event.
type ValidationError struct {
	Kind ErrorKind
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingBody:
		return "no valid data received"
	case MissingTranscript:
		return "no transcript found"
	default:
		return "invalid payload"
	}
}

// Is matches any ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
