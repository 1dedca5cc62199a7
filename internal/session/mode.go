package session

// Mode tells the engine which backend owns the cart for the current shopper.
// Every engine operation receives it explicitly; nothing infers it from
// ambient state.
type Mode string

const (
	// ModeAnonymous routes cart operations to the device-local guest store.
	ModeAnonymous Mode = "anonymous"
	// ModeAuthenticated routes cart operations to the marketplace, which is
	// authoritative for signed-in shoppers.
	ModeAuthenticated Mode = "authenticated"
)

func (m Mode) String() string {
	return string(m)
}

// Valid reports whether the mode is one of the two known values.
func (m Mode) Valid() bool {
	return m == ModeAnonymous || m == ModeAuthenticated
}
