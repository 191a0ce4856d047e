package bytecode

// MaxConstants is the largest constant pool a single block may carry; the
// constant operand of OP_CONSTANT is one byte.
const MaxConstants = 256

// Block is one function body's compiled opcode stream with its constant
// pool. Constants are nil, bool, float64, string, *Function or
// *StructTemplate; the VM realizes them into runtime values on first use.
type Block struct {
	Name   string
	Code   []byte
	Consts []interface{}
	Lines  []LineInfo
}

// Function is the compile-time prototype of one compiled function. The
// script root is a Function of arity 0.
type Function struct {
	Name  string
	Arity int
	Block *Block
}

// StructTemplate describes a struct's field layout: field name to
// declaration order.
type StructTemplate struct {
	Name   string
	Fields map[string]int
}

// LineInfo maps bytecode offsets to source lines (start-inclusive).
type LineInfo struct {
	Offset int
	Line   int
}

// NewBlock returns an empty block for a function body.
func NewBlock(name string) *Block {
	return &Block{Name: name}
}

// NewFunction returns a function prototype with an empty body block.
func NewFunction(name string, arity int) *Function {
	return &Function{Name: name, Arity: arity, Block: NewBlock(name)}
}

// Emit appends opcode/operand bytes to the code stream.
func (b *Block) Emit(code ...byte) {
	b.Code = append(b.Code, code...)
}

// AddConstant appends a constant to the pool and returns its index. The
// caller is responsible for rejecting indexes beyond MaxConstants-1 before
// emitting them as a one-byte operand.
func (b *Block) AddConstant(v interface{}) int {
	b.Consts = append(b.Consts, v)
	return len(b.Consts) - 1
}

// MarkLine records that code emitted from the current offset onward belongs
// to the given source line.
func (b *Block) MarkLine(line int) {
	if line <= 0 {
		return
	}
	off := len(b.Code)
	if n := len(b.Lines); n > 0 {
		if b.Lines[n-1].Offset == off {
			b.Lines[n-1].Line = line
			return
		}
		if b.Lines[n-1].Line == line {
			return
		}
	}
	b.Lines = append(b.Lines, LineInfo{Offset: off, Line: line})
}

// LineForOffset resolves the source line active at a bytecode offset, or 0.
func (b *Block) LineForOffset(offset int) int {
	line := 0
	for _, info := range b.Lines {
		if info.Offset > offset {
			break
		}
		line = info.Line
	}
	return line
}
