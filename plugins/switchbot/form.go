package switchbot

import (
	"context"
	"errors"

	"github.com/joshp123/gohome-switchbot/internal/entries"
)

// ResultType is the outcome kind of a form step.
type ResultType string

const (
	ResultForm        ResultType = "form"
	ResultCreateEntry ResultType = "create_entry"
	ResultAbort       ResultType = "abort"
)

const StepIDUser = "user"

// Field describes one input of the setup form.
type Field struct {
	Name     string
	Type     string
	Required bool
	Default  any
}

// StepResult is what the presentation layer renders after a step.
type StepResult struct {
	Type   ResultType
	StepID string
	Schema []Field
	Errors map[string]string
	Reason string
	Entry  *entries.Entry
}

// Schema returns the setup form fields. The webhook toggle is only offered
// when a cloud relay is available.
func Schema(cloudAvailable bool) []Field {
	fields := []Field{
		{Name: FieldAPIToken, Type: "string", Required: true},
		{Name: FieldAPIKey, Type: "string", Required: true},
	}
	if cloudAvailable {
		fields = append(fields, Field{Name: FieldConfigureWebhook, Type: "bool", Default: true})
	}
	return fields
}

// StepUser drives the user step. A nil input renders the empty form.
func (f *Flow) StepUser(ctx context.Context, in *Input) (StepResult, error) {
	cloudAvailable := f.CloudAvailable(ctx)
	form := StepResult{Type: ResultForm, StepID: StepIDUser, Schema: Schema(cloudAvailable), Errors: map[string]string{}}
	if in == nil {
		return form, nil
	}

	entry, err := f.AttemptSetup(ctx, *in, cloudAvailable)
	var setupErr *SetupError
	switch {
	case err == nil:
		return StepResult{Type: ResultCreateEntry, StepID: StepIDUser, Entry: &entry}, nil
	case errors.Is(err, ErrAlreadyConfigured):
		return StepResult{Type: ResultAbort, StepID: StepIDUser, Reason: ReasonAlreadyConfigured}, nil
	case errors.As(err, &setupErr):
		form.Errors[ErrorBase] = setupErr.Code
		return form, nil
	default:
		return StepResult{}, err
	}
}
