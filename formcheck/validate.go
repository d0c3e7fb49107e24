// CLAUDE:SUMMARY Per-field and per-form validation: required, email, phone, wallet (checksum), custom.
package formcheck

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phoneRe = regexp.MustCompile(`^[+]?[\d\s()\-]{10,}$`)

// Validator checks values against field descriptors.
type Validator struct {
	checksum ChecksumVerifier
	validate *validator.Validate
}

// Option configures a Validator.
type Option func(*Validator)

// WithChecksum replaces the default EIP55 verifier.
func WithChecksum(c ChecksumVerifier) Option { return func(v *Validator) { v.checksum = c } }

// New returns a Validator using EIP55 checksums.
func New(opts ...Option) *Validator {
	v := &Validator{checksum: EIP55, validate: validator.New()}
	for _, o := range opts {
		o(v)
	}
	return v
}

// IsEmail reports whether s is an email address.
func (v *Validator) IsEmail(s string) bool { return v.validate.Var(s, "required,email") == nil }

// IsPhone reports whether s is phone-shaped: optional +, then at least ten
// digits, spaces, parentheses or dashes.
func IsPhone(s string) bool { return phoneRe.MatchString(s) }

// ValidateField checks one value. Required-empty fails first; an empty
// optional field is Neutral; otherwise email, phone, wallet and custom
// checks run in that order and the first failure wins.
func (v *Validator) ValidateField(f Field, value string) State {
	value = strings.TrimSpace(value)

	if value == "" {
		if f.Has(Required) {
			return State{Status: Error, Message: MsgRequired}
		}
		return State{Status: Neutral}
	}

	if f.Has(Email) && !v.IsEmail(value) {
		return State{Status: Error, Message: MsgEmail}
	}
	if f.Has(Phone) && !IsPhone(value) {
		return State{Status: Error, Message: MsgPhone}
	}

	walletOK := false
	if f.Has(Wallet) {
		st := v.ValidateWallet(value)
		if st.Status != Success {
			return st
		}
		walletOK = true
	}

	for _, r := range f.Rules {
		if r.Kind == Custom && r.Check != nil {
			if err := r.Check(value); err != nil {
				return State{Status: Error, Message: err.Error()}
			}
		}
	}

	if walletOK {
		return State{Status: Success}
	}
	return State{Status: Neutral}
}

// ValidateWallet checks a trimmed, non-empty wallet value. Malformed
// addresses are errors; ENS names and mixed-case addresses failing the
// checksum are warnings.
func (v *Validator) ValidateWallet(addr string) State {
	if IsENSName(addr) {
		return State{Status: Warning, Message: MsgENSUnresolvable}
	}
	if !IsWalletAddress(addr) {
		return State{Status: Error, Message: MsgWallet}
	}
	if IsMixedCase(addr) && !v.checksum.ValidChecksum(addr) {
		return State{Status: Warning, Message: MsgChecksum}
	}
	return State{Status: Success}
}

// Result is the outcome of ValidateForm.
type Result struct {
	Valid  bool             `json:"valid"`
	Fields []string         `json:"-"` // form order
	States map[string]State `json:"fields"`
}

// Failures returns the messages of fields that block submission, keyed by
// field name.
func (r Result) Failures() map[string]string {
	out := make(map[string]string)
	for name, st := range r.States {
		if !st.OK() {
			out[name] = st.Message
		}
	}
	return out
}

// ValidateForm validates every field, then the primary/confirm wallet
// match. The form is valid iff every state is Neutral or Success.
func (v *Validator) ValidateForm(form Form, values map[string]string) Result {
	res := Result{States: make(map[string]State, len(form.Fields))}
	for _, f := range form.Fields {
		res.Fields = append(res.Fields, f.Name)
		res.States[f.Name] = v.ValidateField(f, values[f.Name])
	}

	primary, okP := form.walletField(WalletPrimary)
	confirm, okC := form.walletField(WalletConfirm)
	if okP && okC {
		if st, changed := MatchWallets(values[primary.Name], values[confirm.Name], res.States[confirm.Name]); changed {
			res.States[confirm.Name] = st
		}
	}

	res.Valid = true
	for _, st := range res.States {
		if !st.OK() {
			res.Valid = false
			break
		}
	}
	return res
}

// MatchWallets compares primary and confirm case-insensitively. A
// non-empty mismatching confirm is an error whatever the primary's state;
// a match marks the confirm field successful unless it already failed.
func MatchWallets(primary, confirm string, current State) (State, bool) {
	p := strings.ToLower(strings.TrimSpace(primary))
	c := strings.ToLower(strings.TrimSpace(confirm))
	switch {
	case c == "":
		return current, false
	case p != c:
		return State{Status: Error, Message: MsgWalletMismatch}, true
	case current.OK():
		return State{Status: Success}, true
	}
	return current, false
}
