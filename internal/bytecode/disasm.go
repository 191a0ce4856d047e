package bytecode

import (
	"fmt"
	"io"
	"strconv"
)

// Disassembler formats compiled blocks as a readable assembly-style dump.
type Disassembler struct {
	w       io.Writer
	visited map[*Function]bool
	printed bool
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{
		w:       w,
		visited: make(map[*Function]bool),
	}
}

// DisassembleFunction emits a dump for a function and any nested functions
// reachable through its constant pool.
func (d *Disassembler) DisassembleFunction(fn *Function) error {
	if fn == nil || fn.Block == nil {
		return fmt.Errorf("nil function")
	}
	if d.visited[fn] {
		return nil
	}
	d.visited[fn] = true
	d.startSection()
	name := fn.Name
	if name == "" {
		name = "<script>"
	}
	fmt.Fprintf(d.w, "fun %s (arity=%d, consts=%d)\n", name, fn.Arity, len(fn.Block.Consts))
	if err := d.disassembleBlock(fn.Block); err != nil {
		return err
	}
	for _, c := range fn.Block.Consts {
		child, ok := c.(*Function)
		if !ok {
			continue
		}
		if err := d.DisassembleFunction(child); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disassembler) startSection() {
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true
}

func (d *Disassembler) disassembleBlock(b *Block) error {
	code := b.Code
	for ip := 0; ip < len(code); {
		offset := ip
		op := code[ip]
		ip++
		line := b.LineForOffset(offset)
		lineStr := "-"
		if line > 0 {
			lineStr = strconv.Itoa(line)
		}
		detail, err := d.decodeOperands(op, b, &ip)
		if err != nil {
			return err
		}
		fmt.Fprintf(d.w, "%04d %4s %-16s", offset, lineStr, Name(op))
		if detail != "" {
			fmt.Fprintf(d.w, " %s", detail)
		}
		fmt.Fprintln(d.w)
	}
	return nil
}

func (d *Disassembler) decodeOperands(op byte, b *Block, ip *int) (string, error) {
	switch OperandWidth(op) {
	case 0:
		return "", nil
	case 1:
		operand, err := readU8(b.Code, ip)
		if err != nil {
			return "", err
		}
		if op == OP_CONSTANT {
			if int(operand) >= len(b.Consts) {
				return "", fmt.Errorf("constant index out of range: %d", operand)
			}
			return fmt.Sprintf("%d ; %s", operand, FormatConst(b.Consts[operand])), nil
		}
		return strconv.Itoa(int(operand)), nil
	case 2:
		off, err := readU16(b.Code, ip)
		if err != nil {
			return "", err
		}
		// resolve the jump target for readability
		target := *ip + int(off)
		if op == OP_JUMP_BACK {
			target = *ip - int(off)
		}
		return fmt.Sprintf("%d ; -> %04d", off, target), nil
	default:
		return "", fmt.Errorf("unknown opcode 0x%02X", op)
	}
}

func readU8(code []byte, ip *int) (byte, error) {
	if *ip >= len(code) {
		return 0, fmt.Errorf("unexpected end of bytecode")
	}
	val := code[*ip]
	*ip = *ip + 1
	return val, nil
}

func readU16(code []byte, ip *int) (uint16, error) {
	if *ip+1 >= len(code) {
		return 0, fmt.Errorf("unexpected end of bytecode")
	}
	hi := code[*ip]
	lo := code[*ip+1]
	*ip += 2
	return uint16(hi)<<8 | uint16(lo), nil
}

// FormatConst renders one constant-pool entry for dumps and traces.
func FormatConst(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return strconv.Quote(val)
	case *Function:
		name := val.Name
		if name == "" {
			name = "<script>"
		}
		return "fun " + name
	case *StructTemplate:
		return "struct " + val.Name
	default:
		return "<unknown>"
	}
}
