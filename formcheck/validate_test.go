package formcheck

import (
	"errors"
	"strings"
	"testing"
)

const (
	lowerWallet   = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	checksummed   = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	badChecksum   = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD"
	upperWallet   = "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"
	otherChecksum = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func TestChecksumAddress_Vectors(t *testing.T) {
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, v := range vectors {
		if got := ChecksumAddress(strings.ToLower(v)); got != v {
			t.Errorf("ChecksumAddress(%s) = %s", strings.ToLower(v), got)
		}
		if !EIP55.ValidChecksum(v) {
			t.Errorf("EIP55 rejected %s", v)
		}
	}
	if EIP55.ValidChecksum(badChecksum) {
		t.Error("EIP55 accepted a flipped-case address")
	}
}

func TestIsMixedCase(t *testing.T) {
	if IsMixedCase(lowerWallet) || IsMixedCase(upperWallet) {
		t.Error("single-case address reported as mixed")
	}
	if !IsMixedCase(checksummed) {
		t.Error("checksummed address not mixed")
	}
}

func TestValidateField_RequiredEmptyAlwaysRequiredError(t *testing.T) {
	v := New()
	kinds := [][]Rule{
		{{Kind: Required}},
		{{Kind: Required}, {Kind: Email}},
		{{Kind: Required}, {Kind: Phone}},
		{{Kind: Required}, {Kind: Wallet}},
		{{Kind: Required}, {Kind: Custom, Check: func(string) error { return errors.New("custom") }}},
	}
	for _, rules := range kinds {
		for _, val := range []string{"", "   ", "\t\n"} {
			st := v.ValidateField(Field{Name: "f", Rules: rules}, val)
			if st.Status != Error || st.Message != MsgRequired {
				t.Errorf("rules=%v value=%q: got %+v", rules, val, st)
			}
		}
	}
}

func TestValidateField_OptionalEmptyIsNeutral(t *testing.T) {
	v := New()
	st := v.ValidateField(Field{Name: "phone", Rules: []Rule{{Kind: Phone}}}, "  ")
	if st.Status != Neutral || !st.OK() {
		t.Errorf("got %+v", st)
	}
}

func TestValidateField_Formats(t *testing.T) {
	v := New()
	email := Field{Name: "email", Rules: []Rule{{Kind: Email}}}
	phone := Field{Name: "phone", Rules: []Rule{{Kind: Phone}}}
	wallet := Field{Name: "wallet", Rules: []Rule{{Kind: Wallet}}}

	tests := []struct {
		name  string
		field Field
		value string
		want  Status
		msg   string
	}{
		{"email ok", email, "concierge@fomusglobal.com", Neutral, ""},
		{"email bad", email, "plainaddress", Error, MsgEmail},
		{"email missing domain", email, "concierge@", Error, MsgEmail},
		{"phone ok", phone, "+971 50 123 4567", Neutral, ""},
		{"phone parens", phone, "(555) 123-4567", Neutral, ""},
		{"phone short", phone, "12345", Error, MsgPhone},
		{"phone letters", phone, "call me maybe", Error, MsgPhone},
		{"wallet lower", wallet, lowerWallet, Success, ""},
		{"wallet upper", wallet, upperWallet, Success, ""},
		{"wallet checksummed", wallet, checksummed, Success, ""},
		{"wallet bad checksum", wallet, badChecksum, Warning, MsgChecksum},
		{"wallet short", wallet, "0x1234", Error, MsgWallet},
		{"wallet no prefix", wallet, strings.TrimPrefix(lowerWallet, "0x"), Error, MsgWallet},
		{"wallet ens", wallet, "masukame.eth", Warning, MsgENSUnresolvable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := v.ValidateField(tt.field, tt.value)
			if st.Status != tt.want || st.Message != tt.msg {
				t.Errorf("got %s %q, want %s %q", st.Status, st.Message, tt.want, tt.msg)
			}
		})
	}
}

func TestValidateField_OrderFirstFailureWins(t *testing.T) {
	v := New()
	called := false
	f := Field{Name: "x", Rules: []Rule{
		{Kind: Custom, Check: func(string) error { called = true; return errors.New("custom") }},
		{Kind: Email},
	}}
	st := v.ValidateField(f, "nope")
	if st.Message != MsgEmail {
		t.Errorf("got %q, want email failure before custom", st.Message)
	}
	if called {
		t.Error("custom check ran after an earlier failure")
	}

	f = Field{Name: "x", Rules: []Rule{{Kind: Custom, Check: func(s string) error {
		if s != "ok" {
			return errors.New("Must be ok")
		}
		return nil
	}}}}
	if st := v.ValidateField(f, "ko"); st.Status != Error || st.Message != "Must be ok" {
		t.Errorf("custom: %+v", st)
	}
}

func TestPassThroughChecksum(t *testing.T) {
	v := New(WithChecksum(PassThroughChecksum))
	st := v.ValidateWallet(badChecksum)
	if st.Status != Success {
		t.Errorf("pass-through checksum: %+v", st)
	}
}

func walletForm() Form {
	return Form{Name: "purchase", Fields: []Field{
		{Name: "name", Rules: []Rule{{Kind: Required}}},
		{Name: "wallet", Rules: []Rule{{Kind: Required}, {Kind: Wallet}}, Wallet: WalletPrimary},
		{Name: "wallet_confirm", Rules: []Rule{{Kind: Wallet}}, Wallet: WalletConfirm},
	}}
}

func TestValidateForm_WalletMismatchOnConfirm(t *testing.T) {
	v := New()
	res := v.ValidateForm(walletForm(), map[string]string{
		"name":           "Aiko",
		"wallet":         lowerWallet,
		"wallet_confirm": strings.ToLower(otherChecksum),
	})
	if res.Valid {
		t.Fatal("mismatching wallets accepted")
	}
	if st := res.States["wallet_confirm"]; st.Status != Error || st.Message != MsgWalletMismatch {
		t.Errorf("confirm = %+v", st)
	}
	if st := res.States["wallet"]; st.Status != Success {
		t.Errorf("primary = %+v", st)
	}
}

func TestValidateForm_MismatchRegardlessOfPrimary(t *testing.T) {
	v := New()
	res := v.ValidateForm(walletForm(), map[string]string{
		"name":           "Aiko",
		"wallet":         "not-a-wallet",
		"wallet_confirm": lowerWallet,
	})
	if st := res.States["wallet_confirm"]; st.Message != MsgWalletMismatch {
		t.Errorf("confirm = %+v", st)
	}
}

func TestValidateForm_CaseInsensitiveMatch(t *testing.T) {
	v := New()
	res := v.ValidateForm(walletForm(), map[string]string{
		"name":           "Aiko",
		"wallet":         checksummed,
		"wallet_confirm": lowerWallet,
	})
	if !res.Valid {
		t.Fatalf("failures = %v", res.Failures())
	}
	if res.States["wallet_confirm"].Status != Success {
		t.Errorf("confirm = %+v", res.States["wallet_confirm"])
	}
}

func TestValidateForm_ChecksumWarningBlocks(t *testing.T) {
	v := New()
	res := v.ValidateForm(walletForm(), map[string]string{
		"name":   "Aiko",
		"wallet": badChecksum,
	})
	if res.Valid {
		t.Fatal("checksum warning did not block submission")
	}
	st := res.States["wallet"]
	if st.Status != Warning {
		t.Errorf("wallet = %+v, want warning not error", st)
	}
	if res.Failures()["wallet"] != MsgChecksum {
		t.Errorf("failures = %v", res.Failures())
	}
}

func TestValidateForm_EmptyConfirmSkipsMatch(t *testing.T) {
	v := New()
	res := v.ValidateForm(walletForm(), map[string]string{"name": "Aiko", "wallet": lowerWallet})
	if !res.Valid {
		t.Errorf("failures = %v", res.Failures())
	}
	if res.States["wallet_confirm"].Status != Neutral {
		t.Errorf("confirm = %+v", res.States["wallet_confirm"])
	}
}
