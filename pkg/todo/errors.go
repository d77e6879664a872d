package todo

import "fmt"

// StatusError is returned when the todo API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s failed with status code: %d", e.URL, e.StatusCode)
}

// MalformedTodoError is returned when the response body is not a JSON object.
type MalformedTodoError struct {
	URL string
	Err error
}

func (e *MalformedTodoError) Error() string {
	return fmt.Sprintf("malformed todo from %s: %v", e.URL, e.Err)
}

func (e *MalformedTodoError) Unwrap() error {
	return e.Err
}
