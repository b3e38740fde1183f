package models

// Field names accepted by the login form
const (
	FieldUsername = "username"
	FieldPassword = "password"
)

// View identifies which of the three login views is rendered
type View string

const (
	ViewForm    View = "form"
	ViewLoading View = "loading"
	ViewSuccess View = "success"
)

// FormState is the complete state of one mounted login form.
// The zero value is the initial state.
type FormState struct {
	Loading      bool   `json:"loading"`
	Error        string `json:"error"`
	SessionToken string `json:"session_token"`
	Username     string `json:"username"`
	Password     string `json:"-"` // Never serialize to JSON
}

// View returns the view to render. Loading wins over a present token,
// which wins over the form.
func (s FormState) View() View {
	switch {
	case s.Loading:
		return ViewLoading
	case s.SessionToken != "":
		return ViewSuccess
	default:
		return ViewForm
	}
}

// ShowError reports whether the error text is visible. Errors only render
// alongside the form view.
func (s FormState) ShowError() bool {
	return s.Error != "" && s.View() == ViewForm
}

// IsField reports whether name is one of the editable form fields
func IsField(name string) bool {
	return name == FieldUsername || name == FieldPassword
}

// Credentials is the request body sent to the login service
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
