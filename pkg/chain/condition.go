package chain

import (
	"fmt"

	"github.com/chainswap/chainswap-daemon/pkg/bufferutil"
)

// Condition opcodes. The subset the daemon needs to read back out of wallet
// spend solutions.
const (
	OpCreateCoin               uint8 = 51
	OpReserveFee               uint8 = 52
	OpAssertCoinAnnouncement   uint8 = 61
	OpAssertPuzzleAnnouncement uint8 = 63
)

// Solution encoding tags. Every solution in a bundle starts with one.
const (
	solutionTagConditions uint8 = 0x00
	solutionTagSettlement uint8 = 0x01
)

// Condition is one opcode with raw byte arguments.
type Condition struct {
	Opcode uint8
	Args   [][]byte
}

// CreateCoin builds a CREATE_COIN condition for the given output. The puzzle
// hash is the final on-chain hash, already wrapped for non-native assets.
func CreateCoin(puzzleHash Bytes32, amount uint64, memos [][]byte) Condition {
	s := bufferutil.NewSerializer()
	s.WriteUint64(amount)
	args := [][]byte{puzzleHash[:], s.Bytes()}
	args = append(args, memos...)
	return Condition{Opcode: OpCreateCoin, Args: args}
}

// ReserveFee builds a RESERVE_FEE condition.
func ReserveFee(amount uint64) Condition {
	s := bufferutil.NewSerializer()
	s.WriteUint64(amount)
	return Condition{Opcode: OpReserveFee, Args: [][]byte{s.Bytes()}}
}

// AssertPuzzleAnnouncement builds the assert half of a commit/assert pair.
func AssertPuzzleAnnouncement(announcementID Bytes32) Condition {
	return Condition{
		Opcode: OpAssertPuzzleAnnouncement,
		Args:   [][]byte{announcementID[:]},
	}
}

// ConditionsSolution encodes a list of conditions as a spend solution.
func ConditionsSolution(conditions []Condition) Program {
	s := bufferutil.NewSerializer()
	s.WriteUint8(solutionTagConditions)
	s.WriteUint32(uint32(len(conditions)))
	for _, c := range conditions {
		s.WriteUint8(c.Opcode)
		s.WriteUint32(uint32(len(c.Args)))
		for _, arg := range c.Args {
			s.WriteSlice(arg)
		}
	}
	return Program(s.Bytes())
}

// ParseConditionsSolution decodes a conditions solution. It fails on
// settlement solutions and any other tag.
func ParseConditionsSolution(solution Program) ([]Condition, error) {
	d := bufferutil.NewDeserializer(solution)
	tag, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	if tag != solutionTagConditions {
		return nil, fmt.Errorf("not a conditions solution, tag 0x%02x", tag)
	}
	count, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	conditions := make([]Condition, 0, count)
	for i := uint32(0); i < count; i++ {
		opcode, err := d.ReadUint8()
		if err != nil {
			return nil, err
		}
		argc, err := d.ReadUint32()
		if err != nil {
			return nil, err
		}
		args := make([][]byte, 0, argc)
		for j := uint32(0); j < argc; j++ {
			arg, err := d.ReadSlice()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		conditions = append(conditions, Condition{Opcode: opcode, Args: args})
	}
	if err := d.End(); err != nil {
		return nil, err
	}
	return conditions, nil
}

// IsSettlementSolution reports whether the solution carries notarized
// payment groups rather than plain conditions.
func IsSettlementSolution(solution Program) bool {
	return len(solution) > 0 && solution[0] == solutionTagSettlement
}

// SettlementSolutionTag is exported for the offer package, which owns the
// settlement solution payload codec.
const SettlementSolutionTag = solutionTagSettlement

// CreatedCoin is one output decoded from a CREATE_COIN condition.
type CreatedCoin struct {
	Coin  Coin
	Memos [][]byte
}

// createdCoinFromCondition rebuilds the output coin a CREATE_COIN condition
// produces when run under the given spender.
func createdCoinFromCondition(spender Coin, c Condition) (CreatedCoin, error) {
	if c.Opcode != OpCreateCoin {
		return CreatedCoin{}, fmt.Errorf("not a CREATE_COIN condition")
	}
	if len(c.Args) < 2 {
		return CreatedCoin{}, fmt.Errorf("CREATE_COIN requires 2 arguments, got %d", len(c.Args))
	}
	puzzleHash, err := NewBytes32(c.Args[0])
	if err != nil {
		return CreatedCoin{}, fmt.Errorf("CREATE_COIN puzzle hash: %w", err)
	}
	d := bufferutil.NewDeserializer(c.Args[1])
	amount, err := d.ReadUint64()
	if err != nil {
		return CreatedCoin{}, fmt.Errorf("CREATE_COIN amount: %w", err)
	}
	return CreatedCoin{
		Coin: Coin{
			ParentCoinInfo: spender.ID(),
			PuzzleHash:     puzzleHash,
			Amount:         amount,
		},
		Memos: c.Args[2:],
	}, nil
}
