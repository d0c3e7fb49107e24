// CLAUDE:SUMMARY Declarative field rule descriptors and validation states.
// Package formcheck validates site form submissions. Each form is described
// once by explicit rule descriptors (usually derived from its markup at
// setup time), then submissions are checked against those descriptors and
// the resulting field states are rendered inline.
package formcheck

// Kind tags a rule descriptor.
type Kind int

const (
	Required Kind = iota
	Email
	Phone
	Wallet
	Custom
)

func (k Kind) String() string {
	switch k {
	case Required:
		return "required"
	case Email:
		return "email"
	case Phone:
		return "phone"
	case Wallet:
		return "wallet"
	case Custom:
		return "custom"
	}
	return "unknown"
}

// Rule is one check attached to a field. Check is only used by Custom
// rules: a non-nil error fails the field with err.Error() as message.
type Rule struct {
	Kind  Kind
	Check func(value string) error
}

// WalletRole pairs wallet fields for the match check.
type WalletRole string

const (
	WalletPrimary WalletRole = "primary"
	WalletConfirm WalletRole = "confirm"
)

// Field describes one input.
type Field struct {
	Name   string
	Rules  []Rule
	Wallet WalletRole // empty unless the field carries a wallet role
}

// Has reports whether the field carries a rule of kind k.
func (f Field) Has(k Kind) bool {
	for _, r := range f.Rules {
		if r.Kind == k {
			return true
		}
	}
	return false
}

// Form is the set of field descriptors for one form.
type Form struct {
	Name   string
	Fields []Field
}

// field returns the first field with the given wallet role.
func (f Form) walletField(role WalletRole) (Field, bool) {
	for _, fd := range f.Fields {
		if fd.Wallet == role {
			return fd, true
		}
	}
	return Field{}, false
}

// Status is a field's validation outcome.
type Status int

const (
	Neutral Status = iota
	Error
	Warning
	Success
)

func (s Status) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Success:
		return "success"
	}
	return "neutral"
}

// State is a field's status and message.
type State struct {
	Status  Status `json:"-"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the state allows submission.
func (s State) OK() bool { return s.Status == Neutral || s.Status == Success }

// Messages shown to visitors.
const (
	MsgRequired        = "This field is required"
	MsgEmail           = "Please enter a valid email address"
	MsgPhone           = "Please enter a valid phone number"
	MsgWallet          = "Please enter a valid Ethereum wallet address"
	MsgChecksum        = "Address checksum is invalid. Please verify the address."
	MsgWalletMismatch  = "Wallet addresses do not match"
	MsgENSUnresolvable = "Unable to resolve ENS name"
)
