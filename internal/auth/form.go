package auth

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Form ids.
const (
	SignInFormID  = "authentication_signin"
	SignOutFormID = "authentication_signout"
)

// IncorrectCredentialsMessage is reported on the user name and password
// fields when sign-in fails.
const IncorrectCredentialsMessage = "User name or password is incorrect."

// Result is the outcome of a form submission.
type Result int

const (
	ResultFailure Result = iota
	ResultSuccess
)

func (r Result) String() string {
	if r == ResultSuccess {
		return "success"
	}
	return "failure"
}

// FieldError is a user-facing error attached to one or more form fields.
type FieldError struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields"`
}

// Submission is what a form reports after Submit.
type Submission struct {
	Result Result
	Data   map[string]string
	Errors []FieldError
}

// FormSettings binds a form to its route, redirect targets and request.
type FormSettings struct {
	Action       string
	Method       string
	SuccessURL   string
	ErrorURL     string
	SourceURL    string // sign-in only, redirect override after signing in
	Host         string // redirects to other hosts are refused
	UserNameHint string
	User         *User // sign-out only
	Translator   Translator
}

// Form is a sign-in or sign-out form.
type Form interface {
	ID() string
	Init(settings FormSettings) error
	Submit(ctx context.Context, values url.Values) (Submission, error)
	RedirectURL() string
	Render(w io.Writer) error
}

// FormFactory creates the auth forms for a request.
type FormFactory interface {
	SignInForm(s *Service) Form
	SignOutForm(s *Service) Form
}

// DefaultForms creates SignInForm and SignOutForm.
type DefaultForms struct{}

// SignInForm returns a new *SignInForm.
func (DefaultForms) SignInForm(s *Service) Form { return NewSignInForm(s) }

// SignOutForm returns a new *SignOutForm.
func (DefaultForms) SignOutForm(s *Service) Form { return NewSignOutForm(s) }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

type signInInput struct {
	UserName   string `form:"username" validate:"required,max=255"`
	Password   string `form:"password" validate:"required,max=1024"`
	SourceURL  string `form:"sourceUrl" validate:"omitempty,url"`
	SuccessURL string `form:"successUrl" validate:"omitempty,url"`
	ErrorURL   string `form:"errorUrl" validate:"omitempty,url"`
}

type signOutInput struct {
	SuccessURL string `form:"successUrl" validate:"omitempty,url"`
	ErrorURL   string `form:"errorUrl" validate:"omitempty,url"`
}

// baseForm holds what both auth forms share.
type baseForm struct {
	id       string
	svc      *Service
	settings FormSettings

	result     Result
	data       map[string]string
	errors     []FieldError
	successURL string
	errorURL   string
}

func (f *baseForm) ID() string {
	return f.id
}

// CSSClass returns the form id with underscores replaced by spaces.
func (f *baseForm) CSSClass() string {
	return strings.ReplaceAll(f.id, "_", " ")
}

func (f *baseForm) translate(text string) string {
	if f.settings.Translator == nil {
		return text
	}
	return f.settings.Translator(text)
}

func (f *baseForm) submission() Submission {
	return Submission{Result: f.result, Data: f.data, Errors: f.errors}
}

// validateInput runs the validator over input and stores field errors.
func (f *baseForm) validateInput(input any) error {
	f.errors = nil
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating form: %w", err)
	}
	for _, fe := range verrs {
		f.errors = append(f.errors, FieldError{
			Message: f.translate(fieldMessage(fe)),
			Fields:  []string{fe.Field()},
		})
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field %s is required.", fe.Field())
	case "max":
		return fmt.Sprintf("Field %s is too long.", fe.Field())
	case "url":
		return fmt.Sprintf("Field %s must be a valid URL.", fe.Field())
	}
	return fmt.Sprintf("Field %s is invalid.", fe.Field())
}

// RedirectURL returns where to send the client after Submit: the success URL
// on success, the error URL otherwise. Targets on another host, or that are
// not http(s), fall back to "/".
func (f *baseForm) RedirectURL() string {
	target := f.errorURL
	if f.result == ResultSuccess {
		target = f.successURL
	}
	return safeRedirect(target, f.settings.Host)
}

func safeRedirect(target, host string) string {
	if target == "" {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil {
		return "/"
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "/"
	}
	if u.Host != "" && !strings.EqualFold(u.Host, host) {
		return "/"
	}
	return target
}

// SignInForm collects a user name and password and signs the user in.
type SignInForm struct {
	baseForm
}

// NewSignInForm creates a sign-in form for s. Call Init before use.
func NewSignInForm(s *Service) *SignInForm {
	return &SignInForm{baseForm{id: SignInFormID, svc: s}}
}

// Init binds the form. A source URL that is not a valid URL is dropped.
func (f *SignInForm) Init(settings FormSettings) error {
	if settings.SourceURL != "" {
		if err := validate.Var(settings.SourceURL, "url"); err != nil {
			settings.SourceURL = ""
		}
	}
	f.settings = settings
	return nil
}

// Submit validates the values and attempts to sign in. Every failed submit
// waits for the invalid-credentials timeout once. On success the source URL,
// when given, overrides the success URL.
func (f *SignInForm) Submit(ctx context.Context, values url.Values) (Submission, error) {
	in := signInInput{
		UserName:   values.Get("username"),
		Password:   values.Get("password"),
		SourceURL:  values.Get("sourceUrl"),
		SuccessURL: values.Get("successUrl"),
		ErrorURL:   values.Get("errorUrl"),
	}
	f.data = map[string]string{
		"username":   in.UserName,
		"sourceUrl":  in.SourceURL,
		"successUrl": in.SuccessURL,
		"errorUrl":   in.ErrorURL,
	}

	if err := f.validateInput(in); err != nil {
		return Submission{}, err
	}

	if len(f.errors) == 0 {
		user, err := f.svc.Login(ctx, in.UserName, in.Password)
		if err != nil {
			return Submission{}, err
		}
		if user == nil {
			f.errors = append(f.errors, FieldError{
				Message: f.translate(IncorrectCredentialsMessage),
				Fields:  []string{"username", "password"},
			})
		}
	} else if err := f.svc.Throttle(ctx); err != nil {
		return Submission{}, err
	}

	f.result = ResultFailure
	if len(f.errors) == 0 {
		f.result = ResultSuccess
	}

	f.successURL = in.SuccessURL
	if in.SourceURL != "" {
		f.successURL = in.SourceURL
	}
	f.errorURL = in.ErrorURL
	return f.submission(), nil
}

// Render writes the form as HTML.
func (f *SignInForm) Render(w io.Writer) error {
	return formTemplate.Execute(w, f.view(true))
}

// SignOutForm signs the current user out.
type SignOutForm struct {
	baseForm
}

// NewSignOutForm creates a sign-out form for s. Call Init before use.
func NewSignOutForm(s *Service) *SignOutForm {
	return &SignOutForm{baseForm{id: SignOutFormID, svc: s}}
}

// Init binds the form.
func (f *SignOutForm) Init(settings FormSettings) error {
	f.settings = settings
	return nil
}

// Submit validates the redirect targets and signs the user out. Whether the
// whole auth namespace is destroyed follows Config.SignOutDestroysSession.
func (f *SignOutForm) Submit(ctx context.Context, values url.Values) (Submission, error) {
	in := signOutInput{
		SuccessURL: values.Get("successUrl"),
		ErrorURL:   values.Get("errorUrl"),
	}
	f.data = map[string]string{
		"successUrl": in.SuccessURL,
		"errorUrl":   in.ErrorURL,
	}

	if err := f.validateInput(in); err != nil {
		return Submission{}, err
	}

	f.result = ResultFailure
	if len(f.errors) == 0 {
		f.svc.Logout(ctx, f.svc.Configuration().SignOutDestroysSession)
		f.result = ResultSuccess
	}

	f.successURL = in.SuccessURL
	f.errorURL = in.ErrorURL
	return f.submission(), nil
}

// Render writes the form as HTML, including the signed-in user's full name.
func (f *SignOutForm) Render(w io.Writer) error {
	return formTemplate.Execute(w, f.view(false))
}

type formView struct {
	ID         string
	Class      string
	Action     string
	Method     string
	SignIn     bool
	FullName   string
	UserName   string
	SourceURL  string
	SuccessURL string
	ErrorURL   string
	Errors     []FieldError
	Labels     map[string]string
}

func (f *baseForm) view(signIn bool) formView {
	v := formView{
		ID:         f.id,
		Class:      f.CSSClass(),
		Action:     f.settings.Action,
		Method:     strings.ToLower(f.settings.Method),
		SignIn:     signIn,
		SourceURL:  f.settings.SourceURL,
		SuccessURL: f.settings.SuccessURL,
		ErrorURL:   f.settings.ErrorURL,
		Errors:     f.errors,
		UserName:   f.settings.UserNameHint,
		Labels: map[string]string{
			"user":     f.translate("User"),
			"password": f.translate("Password"),
			"signIn":   f.translate("Sign In"),
			"signOut":  f.translate("Log Out"),
		},
	}
	if name, ok := f.data["username"]; ok && name != "" {
		v.UserName = name
	}
	if f.settings.User != nil {
		v.FullName = f.settings.User.FullName
	}
	return v
}

var formTemplate = template.Must(template.New("form").Parse(
	`<form id="{{.ID}}" class="{{.Class}}" action="{{.Action}}" method="{{.Method}}">
{{- if .FullName}}
<span>{{.FullName}}</span>
{{- end}}
{{- range .Errors}}
<p class="error">{{.Message}}</p>
{{- end}}
<input type="hidden" name="successUrl" value="{{.SuccessURL}}" />
<input type="hidden" name="errorUrl" value="{{.ErrorURL}}" />
{{- if .SignIn}}
<input type="text" name="username" placeholder="{{index .Labels "user"}}" value="{{.UserName}}" />
<input type="password" name="password" placeholder="{{index .Labels "password"}}" />
<input type="hidden" name="sourceUrl" value="{{.SourceURL}}" />
<button type="submit" name="send" class="button">{{index .Labels "signIn"}}</button>
{{- else}}
<button type="submit" name="send" class="button">{{index .Labels "signOut"}}</button>
{{- end}}
</form>
`))
