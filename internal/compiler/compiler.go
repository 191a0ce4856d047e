package compiler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/positron-lang/positron/internal/bytecode"
	"github.com/positron-lang/positron/internal/lexer"
	"github.com/positron-lang/positron/internal/token"
)

// MaxLocals caps how many locals can be live at once; local slots are
// addressed by a one-byte operand.
const MaxLocals = 255

// MaxCallArgs caps the argument count of a single call.
const MaxCallArgs = 255

type local struct {
	name  string
	depth int
}

// Compiler is a single-pass parser and code generator: it consumes the token
// stream and emits opcodes straight into the current function's block, with
// no intermediate tree. One Compiler compiles one script.
type Compiler struct {
	lex      *lexer.Lexer
	current  token.Token
	previous token.Token

	fn         *bytecode.Function
	locals     [MaxLocals]local
	localCount int
	scopeDepth int

	// globals known at compile time: the standard library plus every
	// top-level definition seen so far. Used to reject references to
	// undefined globals early; the VM re-checks at runtime.
	globals map[string]bool
	defined []string

	errs      []error
	panicking bool
}

// New prepares a compiler for one script. known seeds the set of resolvable
// global names (standard library plus, for an embedding that keeps state
// across compiles, previously defined globals).
func New(name, source string, known []string) *Compiler {
	c := &Compiler{
		lex:     lexer.New(source),
		fn:      bytecode.NewFunction(name, 0),
		globals: make(map[string]bool, len(known)),
	}
	for _, g := range known {
		c.globals[g] = true
	}
	c.advance()
	return c
}

// Compile parses the whole script and returns its root function, or the
// joined list of every parse error encountered.
func (c *Compiler) Compile() (*bytecode.Function, error) {
	for !c.match(token.EOF) {
		c.statement()
	}
	c.emitConstant(nil)
	c.emit(bytecode.OP_RETURN)

	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}
	return c.fn, nil
}

// DefinedGlobals lists the global names this compile introduced, in order.
func (c *Compiler) DefinedGlobals() []string {
	return c.defined
}

// ---- token plumbing ----

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.NextToken()
		if c.current.Type != token.Illegal {
			return
		}
		c.errorAt(c.current, "unexpected character %q", c.current.Lexeme)
	}
}

func (c *Compiler) check(t token.Type) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Type, what string) {
	if c.check(t) {
		c.advance()
		return
	}
	c.errorAt(c.current, "expected %s", what)
}

func (c *Compiler) errorAt(tok token.Token, format string, args ...interface{}) {
	if c.panicking {
		return
	}
	c.panicking = true
	where := tok.Lexeme
	if tok.Type == token.EOF {
		where = "end of file"
	}
	msg := fmt.Sprintf(format, args...)
	c.errs = append(c.errs, fmt.Errorf("[line %d] error at '%s': %s", tok.Line, where, msg))
}

func (c *Compiler) errorAtPrevious(format string, args ...interface{}) {
	c.errorAt(c.previous, format, args...)
}

// synchronize skips forward to the next statement boundary so one bad
// statement does not drown out later, independent errors.
func (c *Compiler) synchronize() {
	c.panicking = false
	for c.current.Type != token.EOF {
		if c.previous.Type == token.Semicolon {
			return
		}
		switch c.current.Type {
		case token.Print, token.Let, token.Fun, token.Struct, token.If,
			token.While, token.For, token.Return, token.Exit, token.LBrace:
			return
		}
		c.advance()
	}
}

// ---- emit helpers ----

func (c *Compiler) emit(code ...byte) {
	c.fn.Block.MarkLine(c.previous.Line)
	c.fn.Block.Emit(code...)
}

func (c *Compiler) emitConstant(v interface{}) {
	c.emit(bytecode.OP_CONSTANT, c.makeConstant(v))
}

func (c *Compiler) makeConstant(v interface{}) byte {
	if s, ok := v.(string); ok {
		// re-use identical string constants; names repeat a lot and the
		// pool is capped at 256 entries
		for i, existing := range c.fn.Block.Consts {
			if es, ok := existing.(string); ok && es == s {
				return byte(i)
			}
		}
	}
	idx := c.fn.Block.AddConstant(v)
	if idx >= bytecode.MaxConstants {
		c.errorAtPrevious("too many constants in one block")
		return 0
	}
	return byte(idx)
}

// emitJump writes a forward jump with a placeholder offset and returns the
// position of the two operand bytes for patchJump.
func (c *Compiler) emitJump(op byte) int {
	c.emit(op, 0xFF, 0xFF)
	return len(c.fn.Block.Code) - 2
}

// patchJump back-fills a placeholder with the distance from the instruction
// after the operand bytes to the current end of the code stream.
func (c *Compiler) patchJump(pos int) {
	dist := len(c.fn.Block.Code) - (pos + 2)
	if dist > 0xFFFF {
		c.errorAtPrevious("jump distance too large")
		dist = 0
	}
	c.fn.Block.Code[pos] = byte(dist >> 8)
	c.fn.Block.Code[pos+1] = byte(dist)
}

// emitJumpBack writes a backward jump whose distance is measured from the
// instruction after its operand bytes to target.
func (c *Compiler) emitJumpBack(target int) {
	dist := len(c.fn.Block.Code) + 3 - target
	if dist > 0xFFFF {
		c.errorAtPrevious("loop body too large")
		dist = 0
	}
	c.emit(bytecode.OP_JUMP_BACK, byte(dist>>8), byte(dist))
}

// ---- scopes and locals ----

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// endScope closes the innermost scope, emitting one pop per local that is
// going out of scope to unwind them off the operand stack.
func (c *Compiler) endScope() {
	c.scopeDepth--
	for c.localCount > 0 && c.locals[c.localCount-1].depth > c.scopeDepth {
		c.emit(bytecode.OP_POP)
		c.localCount--
	}
}

func (c *Compiler) addLocal(name string) {
	if c.localCount == MaxLocals {
		c.errorAtPrevious("too many local variables in scope")
		return
	}
	for i := c.localCount - 1; i >= 0; i-- {
		if c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == name {
			c.errorAtPrevious("variable '%s' already declared in this scope", name)
			return
		}
	}
	c.locals[c.localCount] = local{name: name, depth: c.scopeDepth}
	c.localCount++
}

// resolveLocal searches the live locals innermost-first so shadowing
// declarations win.
func (c *Compiler) resolveLocal(name string) int {
	for i := c.localCount - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i
		}
	}
	return -1
}

// ---- statements ----

func (c *Compiler) statement() {
	switch {
	case c.match(token.Print):
		c.expression(PrecAssignment)
		c.emit(bytecode.OP_PRINT)
	case c.match(token.Let):
		c.letDeclaration()
	case c.match(token.Fun):
		c.funDeclaration()
	case c.match(token.Struct):
		c.structDeclaration()
	case c.match(token.If):
		c.ifStatement()
	case c.match(token.While):
		c.whileStatement()
	case c.match(token.For):
		c.forStatement()
	case c.match(token.Return):
		c.returnStatement()
	case c.match(token.Exit):
		c.expression(PrecAssignment)
		c.emit(bytecode.OP_EXIT)
	case c.match(token.LBrace):
		c.block()
	default:
		c.expression(PrecAssignment)
		c.emit(bytecode.OP_POP)
	}
	c.match(token.Semicolon)

	if c.panicking {
		c.synchronize()
	}
}

func (c *Compiler) block() {
	c.beginScope()
	for !c.check(token.RBrace) && !c.check(token.EOF) {
		c.statement()
	}
	c.consume(token.RBrace, "'}' after block")
	c.endScope()
}

func (c *Compiler) letDeclaration() {
	c.consume(token.Ident, "variable name")
	name := c.previous.Lexeme

	if c.scopeDepth > 0 {
		c.consume(token.Assign, "'=' after variable name")
		// the initializer may refer to an outer binding of the same
		// name; the new local only exists once it is registered below
		c.expression(PrecAssignment)
		c.addLocal(name)
		// the initializer's result stays on the stack as the slot
		return
	}

	nameIdx := c.makeConstant(name)
	c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_GLOBAL_DEFINE)
	c.consume(token.Assign, "'=' after variable name")
	c.expression(PrecAssignment)
	c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_GLOBAL_SET, bytecode.OP_POP)
	c.defineGlobalName(name)
}

func (c *Compiler) defineGlobalName(name string) {
	if c.globals[name] {
		c.errorAtPrevious("global '%s' already defined", name)
		return
	}
	c.globals[name] = true
	c.defined = append(c.defined, name)
}

func (c *Compiler) funDeclaration() {
	c.consume(token.Ident, "function name")
	name := c.previous.Lexeme
	if c.scopeDepth > 0 {
		c.errorAtPrevious("functions may only be declared at top level")
	}

	// registered before the body compiles so the body can call itself;
	// the call site resolves the name at run time
	c.defineGlobalName(name)

	fn := bytecode.NewFunction(name, 0)
	enclosing := c.fn
	c.fn = fn
	c.beginScope()

	c.consume(token.LParen, "'(' after function name")
	arity := 0
	for !c.check(token.RParen) && !c.check(token.EOF) {
		if arity > 0 {
			c.consume(token.Comma, "',' between parameters")
		}
		c.consume(token.Ident, "parameter name")
		c.addLocal(c.previous.Lexeme)
		arity++
	}
	c.consume(token.RParen, "')' after parameters")
	fn.Arity = arity

	c.consume(token.LBrace, "'{' before function body")
	for !c.check(token.RBrace) && !c.check(token.EOF) {
		c.statement()
	}
	c.consume(token.RBrace, "'}' after function body")

	c.emitConstant(nil)
	c.emit(bytecode.OP_RETURN)

	// frame teardown reclaims the parameter and body slots; no pops here
	c.scopeDepth--
	c.localCount = 0
	c.fn = enclosing

	nameIdx := c.makeConstant(name)
	c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_GLOBAL_DEFINE)
	c.emitConstant(fn)
	c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_GLOBAL_SET, bytecode.OP_POP)
}

func (c *Compiler) structDeclaration() {
	c.consume(token.Ident, "struct name")
	name := c.previous.Lexeme

	tmpl := &bytecode.StructTemplate{Name: name, Fields: make(map[string]int)}
	c.consume(token.LBrace, "'{' after struct name")
	idx := 0
	for !c.match(token.RBrace) {
		if c.check(token.EOF) {
			c.errorAt(c.current, "unterminated struct declaration")
			return
		}
		c.consume(token.Ident, "field name")
		field := c.previous.Lexeme
		if _, dup := tmpl.Fields[field]; dup {
			c.errorAtPrevious("duplicate field '%s'", field)
		}
		tmpl.Fields[field] = idx
		idx++
		c.consume(token.Comma, "',' after field name")
	}

	if c.scopeDepth > 0 {
		c.emitConstant(tmpl)
		c.addLocal(name)
		return
	}

	nameIdx := c.makeConstant(name)
	c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_GLOBAL_DEFINE)
	c.emitConstant(tmpl)
	c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_GLOBAL_SET, bytecode.OP_POP)
	c.defineGlobalName(name)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LParen, "'(' after 'if'")
	c.expression(PrecAssignment)
	c.consume(token.RParen, "')' after condition")

	thenJump := c.emitJump(bytecode.OP_CJUMPF)
	c.statement()
	if c.match(token.Else) {
		elseJump := c.emitJump(bytecode.OP_JUMP)
		c.patchJump(thenJump)
		c.statement()
		c.patchJump(elseJump)
	} else {
		c.patchJump(thenJump)
	}
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.fn.Block.Code)
	c.consume(token.LParen, "'(' after 'while'")
	c.expression(PrecAssignment)
	c.consume(token.RParen, "')' after condition")

	exitJump := c.emitJump(bytecode.OP_CJUMPF)
	c.statement()
	c.emitJumpBack(loopStart)
	c.patchJump(exitJump)
}

// forStatement reorders the textual init/cond/post/body into
//
//	init; COND: cond; CJUMPF end; JUMP body
//	POST: post; JUMP_BACK COND
//	body: ...; JUMP_BACK POST
//	end:
//
// so the post expression runs between each body execution and the condition
// re-test. Every piece may be empty.
func (c *Compiler) forStatement() {
	c.consume(token.LParen, "'(' after 'for'")
	c.beginScope()

	switch {
	case c.match(token.Semicolon):
		// no initializer
	case c.match(token.Let):
		c.letDeclaration()
		c.consume(token.Semicolon, "';' after loop initializer")
	default:
		c.expression(PrecAssignment)
		c.emit(bytecode.OP_POP)
		c.consume(token.Semicolon, "';' after loop initializer")
	}

	condStart := len(c.fn.Block.Code)
	exitJump := -1
	if !c.match(token.Semicolon) {
		c.expression(PrecAssignment)
		c.consume(token.Semicolon, "';' after loop condition")
		exitJump = c.emitJump(bytecode.OP_CJUMPF)
	}

	bodyJump := c.emitJump(bytecode.OP_JUMP)
	postStart := len(c.fn.Block.Code)
	if !c.check(token.RParen) {
		c.expression(PrecAssignment)
		c.emit(bytecode.OP_POP)
	}
	c.consume(token.RParen, "')' after for clauses")
	c.emitJumpBack(condStart)

	c.patchJump(bodyJump)
	c.statement()
	c.emitJumpBack(postStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
	}
	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.check(token.Semicolon) || c.check(token.RBrace) {
		c.emitConstant(nil)
	} else {
		c.expression(PrecAssignment)
	}
	c.emit(bytecode.OP_RETURN)
}

// ---- number parsing shared with rules ----

func (c *Compiler) parseNumber(lexeme string) float64 {
	n, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		c.errorAtPrevious("invalid number %q", lexeme)
		return 0
	}
	return n
}
