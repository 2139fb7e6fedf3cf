package native

import (
	"golang.org/x/xerrors"
)

// ErrOutOfGas is returned when an execution exhausts its gas limit.
var ErrOutOfGas = xerrors.New("out of gas")

// Cost of the host primitives.
const (
	BaseCost        uint64 = 100
	ArgCost         uint64 = 10
	NewURefCost     uint64 = 200
	ReadCost        uint64 = 50
	WriteCost       uint64 = 100
	GetKeyCost      uint64 = 20
	PutKeyCost      uint64 = 100
	NewContractCost uint64 = 2000
)

// DefaultGasLimit is the gas limit of a transaction that does not specify
// one.
const DefaultGasLimit uint64 = 100_000

type gasMeter struct {
	limit uint64
	used  uint64
}

func newGasMeter(limit uint64) *gasMeter {
	return &gasMeter{limit: limit}
}

// charge consumes the cost, or returns ErrOutOfGas when the remaining gas is
// insufficient. The meter is then exhausted.
func (m *gasMeter) charge(cost uint64) error {
	if cost > m.limit-m.used {
		m.used = m.limit
		return xerrors.Errorf("gas limit of %d reached: %w", m.limit, ErrOutOfGas)
	}

	m.used += cost

	return nil
}
