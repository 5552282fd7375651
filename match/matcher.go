package match

import (
	"strconv"

	"github.com/byjtew/libgeodesk/feature"
)

// Matcher wraps a compiled Program with the Accept entry point used by
// the query pipeline to test one feature at a time (spec §4.D).
type Matcher struct {
	prog *Program
}

func newMatcher(p *Program) *Matcher { return &Matcher{prog: p} }

// state is the VM's working registers for a single Accept call. It is
// stack-allocated by the caller and carries no heap allocation of its
// own in the common case.
type state struct {
	tags   feature.TagTable
	typ    feature.Type
	pool   *pool
	cur    string
	found  bool
	cmpRes bool
}

// signal is what an opcode handler tells the driving loop to do next.
type signal uint8

const (
	sigFallthrough signal = iota
	sigJumpRelative
	sigReturnTrue
	sigReturnFalse
)

type opFunc func(s *state, in Instruction) (signal, int32)

var dispatch [opCount]opFunc

func init() {
	dispatch[opReturn] = func(s *state, in Instruction) (signal, int32) { return sigReturnTrue, 0 }
	dispatch[opGoto] = func(s *state, in Instruction) (signal, int32) { return sigJumpRelative, in.A }
	dispatch[opGotoIfMatched] = func(s *state, in Instruction) (signal, int32) {
		if s.cmpRes {
			return sigJumpRelative, in.A
		}
		return sigFallthrough, 0
	}
	dispatch[opLoadGlobalKey] = loadKey
	dispatch[opLoadLocalKey] = loadKey
	dispatch[opCmpStrEq] = func(s *state, in Instruction) (signal, int32) {
		want := s.pool.str(int(in.A))
		res := s.found && s.cur == want
		s.cmpRes = res != in.Op.negated()
		return sigFallthrough, 0
	}
	dispatch[opCmpDoubleOp] = func(s *state, in Instruction) (signal, int32) {
		res := false
		if s.found {
			if v, err := strconv.ParseFloat(s.cur, 64); err == nil {
				res = compareDouble(v, in.Double, in.DblOp)
			}
		}
		s.cmpRes = res != in.Op.negated()
		return sigFallthrough, 0
	}
	dispatch[opCmpRegex] = func(s *state, in Instruction) (signal, int32) {
		res := s.found && s.pool.regex(int(in.A)).MatchString(s.cur)
		s.cmpRes = res != in.Op.negated()
		return sigFallthrough, 0
	}
	dispatch[opCmpType] = func(s *state, in Instruction) (signal, int32) {
		res := uint32(s.typ)&uint32(in.A) != 0
		s.cmpRes = res != in.Op.negated()
		return sigFallthrough, 0
	}
	dispatch[opFirstClause] = func(s *state, in Instruction) (signal, int32) { return sigFallthrough, 0 }
	dispatch[opHasValue] = func(s *state, in Instruction) (signal, int32) {
		s.cmpRes = s.found != in.Op.negated()
		return sigFallthrough, 0
	}
}

func loadKey(s *state, in Instruction) (signal, int32) {
	key := s.pool.str(int(in.A))
	s.cur, s.found = s.tags.Get(key)
	return sigFallthrough, 0
}

func compareDouble(a, b float64, op DoubleOp) bool {
	switch op {
	case DoubleEq:
		return a == b
	case DoubleNe:
		return a != b
	case DoubleLt:
		return a < b
	case DoubleLe:
		return a <= b
	case DoubleGt:
		return a > b
	case DoubleGe:
		return a >= b
	default:
		return false
	}
}

// Accept evaluates the program against one feature's type and tags,
// returning true if it matches. An unrecognized opcode or an ip that
// runs off the end of the program without hitting RETURN rejects the
// feature rather than panicking (spec §4.D: "fail closed").
func (m *Matcher) Accept(typ feature.Type, tags feature.TagTable) bool {
	s := &state{tags: tags, typ: typ, pool: m.prog.pool}
	code := m.prog.code
	ip := 0
	for {
		if ip < 0 || ip >= len(code) {
			return false
		}
		in := code[ip]
		c := in.Op.code()
		if c >= opCount || dispatch[c] == nil {
			return false
		}
		sig, arg := dispatch[c](s, in)
		switch sig {
		case sigReturnTrue:
			return true
		case sigReturnFalse:
			return false
		case sigJumpRelative:
			ip += int(arg)
		default:
			ip++
		}
	}
}
