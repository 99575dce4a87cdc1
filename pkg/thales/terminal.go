package thales

import (
	"github.com/gregLibert/hsm-gateway/pkg/hsm"
)

// KEY MAILERS:
// Terminal master keys are delivered on paper. The print commands fill the
// mailer template loaded with PA using the ';' separated fields below, in order.

// Mailer holds the fields printed on a key mailer.
type Mailer struct {
	Deployer  string
	Site      string
	Terminal  string
	Component string // Component number, unused by TA.
}

func (m Mailer) fields(withComponent bool) (string, error) {
	for _, f := range []struct{ name, value string }{
		{"deployer", m.Deployer},
		{"site", m.Site},
		{"terminal", m.Terminal},
	} {
		if err := field(f.name, f.value); err != nil {
			return "", err
		}
	}

	out := m.Deployer + ";" + m.Site + ";" + m.Terminal
	if !withComponent {
		return out, nil
	}
	if err := field("component", m.Component); err != nil {
		return "", err
	}
	return out + ";" + m.Component, nil
}

var printKeyLayout = hsm.Layout{
	{Name: "TMK_LMK", Width: keyWidth},
}

// PrintComponents creates an NE request printing a TMK component.
func PrintComponents(m Mailer) (*hsm.Request, error) {
	fields, err := m.fields(true)
	if err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_PRINT_COMPONENTS, message(string(KeyTypeTMK), "U", fields), tmkLayout), nil
}

// GenerateAndPrintComponent creates an A2 request generating a TMK component,
// printing it and returning its check value.
func GenerateAndPrintComponent(m Mailer) (*hsm.Request, error) {
	fields, err := m.fields(true)
	if err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_GENERATE_PRINT_KEY, message(string(KeyTypeTMK), "2", "U", fields), tmkLayout), nil
}

// GenerateAndPrintTMK creates an OE request generating and printing a whole TMK.
func GenerateAndPrintTMK(m Mailer) (*hsm.Request, error) {
	fields, err := m.fields(true)
	if err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_PRINT_KEY, message(fields), printKeyLayout), nil
}

// PrintTMK creates a TA request printing a TMK already held under the LMK.
func PrintTMK(tmk string, m Mailer) (*hsm.Request, error) {
	tmk, err := qualify(SchemeU, "TMK", tmk)
	if err != nil {
		return nil, err
	}
	fields, err := m.fields(false)
	if err != nil {
		return nil, err
	}
	return hsm.NewRequest(hsm.CMD_PRINT_TMK, message(tmk, fields), nil), nil
}

// LoadFormatting creates a PA request loading the mailer print template.
func LoadFormatting(formatting string) (*hsm.Request, error) {
	if formatting == "" {
		return nil, ErrInvalidParameter
	}
	return hsm.NewRequest(hsm.CMD_LOAD_FORMATTING, message(formatting), nil), nil
}
