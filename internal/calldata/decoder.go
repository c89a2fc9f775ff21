package calldata

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MaxRegistrations bounds the decoded array length.
const MaxRegistrations = 1000

const registerValidatorsABIJSON = `[
  {"type": "function", "name": "registerValidators", "stateMutability": "payable", "outputs": [
    {"name": "registrationRoot", "type": "bytes32"}
  ], "inputs": [
    {"name": "registrations", "type": "tuple[]", "components": [
      {"name": "pubkey", "type": "tuple", "components": [
        {"name": "x", "type": "tuple", "components": [
          {"name": "a", "type": "uint256"}, {"name": "b", "type": "uint256"}
        ]},
        {"name": "y", "type": "tuple", "components": [
          {"name": "a", "type": "uint256"}, {"name": "b", "type": "uint256"}
        ]}
      ]},
      {"name": "signature", "type": "tuple", "components": [
        {"name": "x", "type": "tuple", "components": [
          {"name": "c0", "type": "tuple", "components": [
            {"name": "a", "type": "uint256"}, {"name": "b", "type": "uint256"}
          ]},
          {"name": "c1", "type": "tuple", "components": [
            {"name": "a", "type": "uint256"}, {"name": "b", "type": "uint256"}
          ]}
        ]},
        {"name": "y", "type": "tuple", "components": [
          {"name": "c0", "type": "tuple", "components": [
            {"name": "a", "type": "uint256"}, {"name": "b", "type": "uint256"}
          ]},
          {"name": "c1", "type": "tuple", "components": [
            {"name": "a", "type": "uint256"}, {"name": "b", "type": "uint256"}
          ]}
        ]}
      ]}
    ]}
  ]}
]`

var (
	// ErrNotRegisterValidators is returned for calldata with another selector.
	ErrNotRegisterValidators = errors.New("calldata is not a registerValidators call")
	// ErrTooManyRegistrations is returned when the array exceeds MaxRegistrations.
	ErrTooManyRegistrations = errors.New("too many registrations")
)

var (
	abiOnce   sync.Once
	parsedABI abi.ABI
	abiErr    error
)

// RegisterValidatorsABI returns the parsed ABI holding registerValidators.
func RegisterValidatorsABI() (abi.ABI, error) {
	abiOnce.Do(func() {
		parsedABI, abiErr = abi.JSON(strings.NewReader(registerValidatorsABIJSON))
	})
	return parsedABI, abiErr
}

// Registration is one validator registration from the calldata.
type Registration struct {
	Pubkey    G1Point
	Signature G2Point
}

// Decoded holds the result of decoding a registerValidators call.
type Decoded struct {
	Function      string
	Registrations []Registration
}

// Pubkeys returns the compressed hex pubkeys in call order.
func (d *Decoded) Pubkeys() []string {
	out := make([]string, 0, len(d.Registrations))
	for _, r := range d.Registrations {
		out = append(out, r.Pubkey.PubkeyHex())
	}
	return out
}

// Decoder decodes registerValidators calldata.
type Decoder struct {
	method abi.Method
}

func NewDecoder() (*Decoder, error) {
	parsed, err := RegisterValidatorsABI()
	if err != nil {
		return nil, fmt.Errorf("parse registerValidators abi: %w", err)
	}
	method, ok := parsed.Methods["registerValidators"]
	if !ok {
		return nil, fmt.Errorf("registerValidators missing from abi")
	}
	return &Decoder{method: method}, nil
}

// Selector returns the 4-byte function selector.
func (d *Decoder) Selector() []byte {
	return append([]byte(nil), d.method.ID...)
}

// IsRegisterValidators reports whether the calldata starts with the selector.
func (d *Decoder) IsRegisterValidators(input []byte) bool {
	return len(input) >= 4 && bytes.Equal(input[:4], d.method.ID)
}

// Decode unpacks the registrations of a registerValidators call.
func (d *Decoder) Decode(input []byte) (*Decoded, error) {
	if !d.IsRegisterValidators(input) {
		return nil, ErrNotRegisterValidators
	}

	values, err := d.method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack registerValidators: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected argument count %d", len(values))
	}

	list := reflect.ValueOf(values[0])
	if list.Kind() != reflect.Slice {
		return nil, fmt.Errorf("unexpected registrations type %T", values[0])
	}
	if list.Len() > MaxRegistrations {
		return nil, fmt.Errorf("%w: %d", ErrTooManyRegistrations, list.Len())
	}

	out := &Decoded{
		Function:      d.method.Name,
		Registrations: make([]Registration, 0, list.Len()),
	}
	for i := 0; i < list.Len(); i++ {
		item := list.Index(i)
		pubkey := item.FieldByName("Pubkey")
		sig := item.FieldByName("Signature")
		if !pubkey.IsValid() || !sig.IsValid() {
			return nil, fmt.Errorf("registration %d: unexpected layout", i)
		}
		out.Registrations = append(out.Registrations, Registration{
			Pubkey: G1Point{
				X: fpFrom(pubkey.FieldByName("X")),
				Y: fpFrom(pubkey.FieldByName("Y")),
			},
			Signature: G2Point{
				X: fp2From(sig.FieldByName("X")),
				Y: fp2From(sig.FieldByName("Y")),
			},
		})
	}
	return out, nil
}

func fpFrom(v reflect.Value) Fp {
	return Fp{A: bigField(v, "A"), B: bigField(v, "B")}
}

func fp2From(v reflect.Value) Fp2 {
	if !v.IsValid() {
		return Fp2{}
	}
	return Fp2{C0: fpFrom(v.FieldByName("C0")), C1: fpFrom(v.FieldByName("C1"))}
}

func bigField(v reflect.Value, name string) *big.Int {
	if !v.IsValid() {
		return nil
	}
	f := v.FieldByName(name)
	if !f.IsValid() {
		return nil
	}
	n, _ := f.Interface().(*big.Int)
	return n
}

// maxDisplayed is the number of pubkeys listed before eliding the rest.
const maxDisplayed = 5

// Summary renders the decoded call for console output.
func (d *Decoded) Summary(fullPubkeys bool) string {
	var b strings.Builder
	b.WriteString("📋 Transaction Analysis:\n")
	fmt.Fprintf(&b, "   🔍 Function: %s()\n", d.Function)
	fmt.Fprintf(&b, "   📊 Validators Registered: %d\n", len(d.Registrations))

	if n := len(d.Registrations); n > 0 {
		b.WriteString("   🔑 Validator Public Keys:\n")
		shown := n
		if shown > maxDisplayed {
			shown = maxDisplayed
		}
		for i := 0; i < shown; i++ {
			key := d.Registrations[i].Pubkey.ShortPubkey()
			if fullPubkeys {
				key = d.Registrations[i].Pubkey.PubkeyHex()
			}
			fmt.Fprintf(&b, "     - Validator #%d: %s\n", i+1, key)
		}
		if n > shown {
			fmt.Fprintf(&b, "     - ... and %d more validators\n", n-shown)
		}
	}

	b.WriteString("   ✅ Triggered by EigenLayerMiddleware\n")
	return b.String()
}
