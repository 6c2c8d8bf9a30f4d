package session

// View identifies a screen the store asks the front-end to show next
type View string

const (
	// ViewHome is shown after a successful login
	ViewHome View = "/home"
	// ViewRegisterEmail tells the user to confirm the email address after registration
	ViewRegisterEmail View = "/register/email"
	// ViewLogin is where unauthenticated users are sent
	ViewLogin View = "/login"
)

// Navigator receives navigation signals from store actions
type Navigator interface {
	Navigate(view View)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(view View)

// Navigate implements Navigator
func (f NavigatorFunc) Navigate(view View) {
	f(view)
}

type nopNavigator struct{}

func (nopNavigator) Navigate(View) {}
