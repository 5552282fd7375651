package match

// Instruction is one decoded program step. The reference engine packs
// instructions into a raw stream of 16-bit words with the program
// counter advancing word-by-word; here the stream is pre-decoded into
// a slice of fixed-size Instructions and the counter advances
// instruction-by-instruction instead; GOTO/GOTO_IF_MATCHED offsets are
// likewise counted in instructions. The opcode semantics, the negate
// bit, and the fail-closed behavior on an unrecognized opcode are
// unchanged (spec §4.D).
type Instruction struct {
	Op     Op
	A      int32   // GOTO/GOTO_IF_MATCHED: relative offset. LOAD_GLOBAL_KEY/LOAD_LOCAL_KEY/CMP_STR_EQ: pool string index. CMP_REGEX: pool regex index. CMP_TYPE: type bitmask.
	Double float64 // CMP_DOUBLE_OP operand
	DblOp  DoubleOp
}

// Program is a compiled matcher: a flat instruction stream plus the
// constant pool its LOAD_*/CMP_STR_EQ/CMP_REGEX instructions index
// into. Execution always starts at instruction 0. An accepting path
// ends in RETURN; a rejecting path jumps one past the last instruction,
// which the matcher treats as a rejection.
type Program struct {
	code []Instruction
	pool *pool
}

func newProgramBuilder() *builder {
	return &builder{pool: newPool()}
}

// builder assembles a Program incrementally; used by the compiler.
type builder struct {
	code []Instruction
	pool *pool
}

func (b *builder) emit(in Instruction) int {
	b.code = append(b.code, in)
	return len(b.code) - 1
}

// patchTo rewrites a GOTO/GOTO_IF_MATCHED at index idx so it targets
// instruction index target.
func (b *builder) patchTo(idx int, target int) {
	b.code[idx].A = int32(target - idx)
}

func (b *builder) here() int { return len(b.code) }

func (b *builder) build() *Program {
	return &Program{code: b.code, pool: b.pool}
}
