package match

import "github.com/byjtew/libgeodesk/feature"

// compileSelector lowers one selector (a type mask plus a key-ordered
// chain of tagClauses) into a Program. Every clause must match
// (conjunction); a failing clause jumps to the program's implicit
// reject exit, one past the last instruction, which Accept's
// fail-closed end-of-program handling turns into a rejection.
func compileSelector(sel *selector) *Program {
	b := newProgramBuilder()
	var rejects []int

	if sel.acceptedTypes != feature.AnyType {
		rejects = append(rejects, emitTest(b, Instruction{
			Op: op(opCmpType, false),
			A:  int32(sel.acceptedTypes),
		}))
	}

	for head := sel.firstClause; head != nil; {
		next := emitClauseChain(b, head, &rejects)
		head = next
	}

	b.emit(Instruction{Op: op(opReturn, false)})
	end := b.here()
	for _, idx := range rejects {
		b.patchTo(idx, end)
	}
	return b.build()
}

// emitClauseChain emits the shared LOAD for one or more clauses
// absorbed onto the same key, followed by each one's test, and
// returns the first clause of the next (different) key.
func emitClauseChain(b *builder, head *tagClause, rejects *[]int) *tagClause {
	loadOp := opLoadLocalKey
	if feature.IsGlobalKey(head.keyOp.key) {
		loadOp = opLoadGlobalKey
	}
	keyIdx := b.pool.internString(head.keyOp.key)
	b.emit(Instruction{Op: op(loadOp, false), A: int32(keyIdx)})

	c := head
	for c != nil {
		*rejects = append(*rejects, emitOneTest(b, c))
		if c.next != nil && c.next.keyOp.compareTo(head.keyOp) != 0 {
			return c.next
		}
		c = c.next
	}
	return nil
}

// emitOneTest emits the instruction for one clause's test plus the
// standard GOTO_IF_MATCHED/GOTO(reject) pair, returning the index of
// the reject GOTO so the caller can patch its target once the
// program's final length is known.
func emitOneTest(b *builder, c *tagClause) int {
	switch c.kind {
	case clauseHasKey:
		return emitTest(b, Instruction{Op: op(opHasValue, c.negate)})
	case clauseNoKey:
		return emitTest(b, Instruction{Op: op(opHasValue, !c.negate)})
	case clauseStrEq:
		return emitTest(b, Instruction{Op: op(opCmpStrEq, c.negate), A: mustIntern(b, c.str)})
	case clauseStrNe:
		return emitTest(b, Instruction{Op: op(opCmpStrEq, !c.negate), A: mustIntern(b, c.str)})
	case clauseDouble:
		return emitTest(b, Instruction{Op: op(opCmpDoubleOp, c.negate), Double: c.dbl, DblOp: c.dblOp})
	case clauseRegex:
		idx, err := b.pool.internRegex(c.regex)
		if err != nil {
			// An unparsable regex can never match; compile it as an
			// always-false test so the selector rejects cleanly rather
			// than surfacing a panic deep inside program execution.
			return emitTest(b, Instruction{Op: op(opCmpType, true), A: int32(feature.AnyType)})
		}
		return emitTest(b, Instruction{Op: op(opCmpRegex, c.negate), A: int32(idx)})
	}
	return emitTest(b, Instruction{Op: op(opCmpType, true), A: int32(feature.AnyType)})
}

func mustIntern(b *builder, s string) int32 { return int32(b.pool.internString(s)) }

// emitTest emits test, then the GOTO_IF_MATCHED/GOTO(reject) pair: on
// a match, control skips the reject jump; on a miss it falls through
// into it. The returned index is the reject GOTO, left unpatched for
// the caller to fix up once the overall program length is known.
func emitTest(b *builder, test Instruction) int {
	b.emit(test)
	gim := b.emit(Instruction{Op: op(opGotoIfMatched, false)})
	rej := b.emit(Instruction{Op: op(opGoto, false)})
	b.patchTo(gim, b.here())
	return rej
}
