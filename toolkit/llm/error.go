package llm

import (
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrTurnLimit is returned when the model still wants to call tools after the last allowed turn.
var ErrTurnLimit = errors.New("turn limit reached")

type StreamError struct {
	Code    int
	Type    string
	Message string
}

func (e StreamError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s (%d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%d, %s)", e.Message, e.Code, e.Type)
}

// asStreamError normalises the error types of the chat completions client.
func asStreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StreamError{Code: apiErr.HTTPStatusCode, Type: apiErr.Type, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.Error()
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &StreamError{Code: reqErr.HTTPStatusCode, Message: msg}
	}
	return err
}
