package core

// Peripherals is the arena of exclusively owned peripheral units. Take
// hands out at most one Owned per unit; the unit stays taken until that
// Owned is released.
type Peripherals struct {
	owned Mutex[[]bool]
	n     int
}

// Owned is the capability to use one peripheral unit. Pass it by pointer
// and do not copy it; releasing it gives the unit back.
type Owned struct {
	p        *Peripherals
	unit     UnitID
	released bool
}

// NewPeripherals returns an arena of n free units
func NewPeripherals(n int) *Peripherals {
	p := &Peripherals{n: n}
	WithCS(func(cs CS) {
		*p.owned.Borrow(cs) = make([]bool, n)
	})
	return p
}

// Take acquires unit, failing with ErrPeripheralAlreadyOwned if someone
// else holds it.
func (p *Peripherals) Take(unit UnitID) (*Owned, error) {
	if int(unit) >= p.n {
		return nil, &E{C: ErrUnknownUnit, Op: "peripherals.take"}
	}
	var err error
	WithCS(func(cs CS) {
		owned := *p.owned.Borrow(cs)
		if owned[unit] {
			err = ErrPeripheralAlreadyOwned
			return
		}
		owned[unit] = true
	})
	if err != nil {
		return nil, err
	}
	return &Owned{p: p, unit: unit}, nil
}

// Taken reports whether unit is currently held
func (p *Peripherals) Taken(unit UnitID) bool {
	if int(unit) >= p.n {
		return false
	}
	var taken bool
	WithCS(func(cs CS) {
		taken = (*p.owned.Borrow(cs))[unit]
	})
	return taken
}

// Unit returns the unit this capability covers
func (o *Owned) Unit() UnitID { return o.unit }

// Release returns the unit to the arena. A second release reports
// ErrStaleHandle and leaves the arena alone, so it cannot free a unit
// someone else has taken since.
func (o *Owned) Release() error {
	if o == nil || o.released {
		return &E{C: ErrStaleHandle, Op: "peripherals.release"}
	}
	o.released = true
	WithCS(func(cs CS) {
		(*o.p.owned.Borrow(cs))[o.unit] = false
	})
	return nil
}
