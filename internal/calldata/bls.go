package calldata

import (
	"fmt"
	"math/big"
)

// Fp is a BLS12-381 base field element split into a high and a low word.
type Fp struct {
	A *big.Int
	B *big.Int
}

// Fp2 is an element of the quadratic extension field.
type Fp2 struct {
	C0 Fp
	C1 Fp
}

// G1Point is an uncompressed G1 point, as passed to the registry contracts.
type G1Point struct {
	X Fp
	Y Fp
}

// G2Point is an uncompressed G2 point.
type G2Point struct {
	X Fp2
	Y Fp2
}

var (
	fieldModulus = func() *big.Int {
		hi, _ := new(big.Int).SetString("1a0111ea397fe69a4b1ba7b6434bacd7", 16)
		lo, _ := new(big.Int).SetString("64774b84f38512bf6730d2a0f6b0f6241eabfffeb153ffffb9feffffffffaaab", 16)
		return join(hi, lo)
	}()

	compressionFlag = new(big.Int).Lsh(big.NewInt(1), 127)
	signFlag        = new(big.Int).Lsh(big.NewInt(1), 125)
)

func join(hi, lo *big.Int) *big.Int {
	out := new(big.Int).Lsh(hi, 256)
	return out.Or(out, lo)
}

func (f Fp) value() *big.Int {
	return join(orZero(f.A), orZero(f.B))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Compress returns the two words of the 48-byte compressed encoding of p.
// The compression flag is always set; the sign flag is set when y is
// larger than -y. Points at infinity are not expected.
func (p G1Point) Compress() (*big.Int, *big.Int) {
	hi := new(big.Int).Or(orZero(p.X.A), compressionFlag)
	lo := new(big.Int).Set(orZero(p.X.B))

	y := p.Y.value()
	negY := new(big.Int).Sub(fieldModulus, y)
	if y.Cmp(negY) > 0 {
		hi.Or(hi, signFlag)
	}
	return hi, lo
}

// PubkeyHex renders the compressed point as 0x-prefixed hex.
func (p G1Point) PubkeyHex() string {
	hi, lo := p.Compress()
	return fmt.Sprintf("0x%x%064x", hi, lo)
}

// ShortPubkey renders the compressed point with the middle elided.
func (p G1Point) ShortPubkey() string {
	full := p.PubkeyHex()[2:]
	if len(full) <= 16 {
		return "0x" + full
	}
	return "0x" + full[:8] + "..." + full[len(full)-8:]
}
