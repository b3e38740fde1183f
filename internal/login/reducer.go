package login

import (
	"time"

	"github.com/shindakun/loginform/internal/models"
)

// Event is anything that can be applied to a FormState by Reduce
type Event interface {
	event()
}

// FieldEdited sets one of the form fields to a new value
type FieldEdited struct {
	Name  string
	Value string
}

// Submitted marks the start of a login request
type Submitted struct{}

// LoginSucceeded carries the token returned by the login service.
// Username is the one that was submitted.
type LoginSucceeded struct {
	Token    string
	Username string
	Elapsed  time.Duration
}

// LoginFailed carries the message of a rejected or failed login.
// Err is the underlying error when one exists.
type LoginFailed struct {
	Message  string
	Err      error
	Username string
	Elapsed  time.Duration
}

func (FieldEdited) event()    {}
func (Submitted) event()      {}
func (LoginSucceeded) event() {}
func (LoginFailed) event()    {}

// Reduce applies ev to state and returns the new state. It has no side
// effects; unknown events and unknown field names return state unchanged.
func Reduce(state models.FormState, ev Event) models.FormState {
	switch e := ev.(type) {
	case FieldEdited:
		switch e.Name {
		case models.FieldUsername:
			state.Username = e.Value
		case models.FieldPassword:
			state.Password = e.Value
		}
	case Submitted:
		state.Loading = true
	case LoginSucceeded:
		state.Loading = false
		state.SessionToken = e.Token
		state.Error = ""
	case LoginFailed:
		state.Loading = false
		state.SessionToken = ""
		state.Error = e.Message
	}
	return state
}
