package bytecode

// OpCode values for the Positron VM. The operand widths reported by
// OperandWidth are the single source of truth shared by the compiler, the
// interpreter loop and the disassembler; keep the three in sync by never
// decoding operands anywhere else.
const (
	OP_NOP byte = iota
	OP_POP
	OP_DUPE
	OP_SWAP
	OP_EXIT
	OP_RETURN
	OP_PRINT

	OP_GLOBAL_DEFINE
	OP_GLOBAL_SET
	OP_GLOBAL_GET

	OP_NEGATE
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_NOT

	OP_LT
	OP_GT
	OP_LTE
	OP_GTE
	OP_EQ
	OP_NEQ

	OP_FIELD_GET
	OP_FIELD_SET
	OP_LIST
	OP_INDEX

	// one-byte operand
	OP_CONSTANT
	OP_CALL
	OP_LOCAL_GET
	OP_LOCAL_SET

	// two-byte big-endian operand
	OP_JUMP
	OP_JUMP_BACK
	OP_CJUMPF
	OP_CJUMPT
)

// OperandWidth returns the number of inline operand bytes following an
// opcode, or -1 for an unknown opcode.
func OperandWidth(op byte) int {
	switch op {
	case OP_CONSTANT, OP_CALL, OP_LOCAL_GET, OP_LOCAL_SET:
		return 1
	case OP_JUMP, OP_JUMP_BACK, OP_CJUMPF, OP_CJUMPT:
		return 2
	default:
		if op > OP_CJUMPT {
			return -1
		}
		return 0
	}
}

// Name returns the mnemonic for an opcode.
func Name(op byte) string {
	switch op {
	case OP_NOP:
		return "OP_NOP"
	case OP_POP:
		return "OP_POP"
	case OP_DUPE:
		return "OP_DUPE"
	case OP_SWAP:
		return "OP_SWAP"
	case OP_EXIT:
		return "OP_EXIT"
	case OP_RETURN:
		return "OP_RETURN"
	case OP_PRINT:
		return "OP_PRINT"
	case OP_GLOBAL_DEFINE:
		return "OP_GLOBAL_DEFINE"
	case OP_GLOBAL_SET:
		return "OP_GLOBAL_SET"
	case OP_GLOBAL_GET:
		return "OP_GLOBAL_GET"
	case OP_NEGATE:
		return "OP_NEGATE"
	case OP_ADD:
		return "OP_ADD"
	case OP_SUB:
		return "OP_SUB"
	case OP_MUL:
		return "OP_MUL"
	case OP_DIV:
		return "OP_DIV"
	case OP_NOT:
		return "OP_NOT"
	case OP_LT:
		return "OP_LT"
	case OP_GT:
		return "OP_GT"
	case OP_LTE:
		return "OP_LTE"
	case OP_GTE:
		return "OP_GTE"
	case OP_EQ:
		return "OP_EQ"
	case OP_NEQ:
		return "OP_NEQ"
	case OP_FIELD_GET:
		return "OP_FIELD_GET"
	case OP_FIELD_SET:
		return "OP_FIELD_SET"
	case OP_LIST:
		return "OP_LIST"
	case OP_INDEX:
		return "OP_INDEX"
	case OP_CONSTANT:
		return "OP_CONSTANT"
	case OP_CALL:
		return "OP_CALL"
	case OP_LOCAL_GET:
		return "OP_LOCAL_GET"
	case OP_LOCAL_SET:
		return "OP_LOCAL_SET"
	case OP_JUMP:
		return "OP_JUMP"
	case OP_JUMP_BACK:
		return "OP_JUMP_BACK"
	case OP_CJUMPF:
		return "OP_CJUMPF"
	case OP_CJUMPT:
		return "OP_CJUMPT"
	default:
		return "OP_UNKNOWN"
	}
}
