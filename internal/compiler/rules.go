package compiler

import (
	"github.com/positron-lang/positron/internal/bytecode"
	"github.com/positron-lang/positron/internal/token"
)

// Precedence orders the binding strength of operators, weakest first.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   Precedence
}

// rules maps each token type to its prefix handler, infix handler and infix
// precedence. Populated in init to let handlers refer back to the table.
var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.Number:   {prefix: number},
		token.String:   {prefix: stringLiteral},
		token.Ident:    {prefix: variable},
		token.True:     {prefix: literal},
		token.False:    {prefix: literal},
		token.Null:     {prefix: literal},
		token.LParen:   {prefix: grouping, infix: call, prec: PrecCall},
		token.LBracket: {prefix: list},
		token.Minus:    {prefix: unary, infix: binary, prec: PrecTerm},
		token.Bang:     {prefix: unary},
		token.Plus:     {infix: binary, prec: PrecTerm},
		token.Star:     {infix: binary, prec: PrecFactor},
		token.Slash:    {infix: binary, prec: PrecFactor},
		token.Less:         {infix: binary, prec: PrecComparison},
		token.Greater:      {infix: binary, prec: PrecComparison},
		token.LessEqual:    {infix: binary, prec: PrecComparison},
		token.GreaterEqual: {infix: binary, prec: PrecComparison},
		token.Equal:        {infix: binary, prec: PrecEquality},
		token.NotEqual:     {infix: binary, prec: PrecEquality},
		token.AndAnd:       {infix: logicalAnd, prec: PrecAnd},
		token.OrOr:         {infix: logicalOr, prec: PrecOr},
		token.Dot:          {infix: dot, prec: PrecCall},
		token.Colon:        {infix: index, prec: PrecCall},
	}
}

// expression parses anything binding at least as tightly as minPrec,
// emitting code as it goes. Assignment is only honored when parsing at
// assignment precedence, which keeps targets like a + b from absorbing
// an '=' that follows them.
func (c *Compiler) expression(minPrec Precedence) {
	c.advance()
	rule := rules[c.previous.Type]
	if rule.prefix == nil {
		c.errorAtPrevious("expected expression")
		return
	}
	canAssign := minPrec <= PrecAssignment
	rule.prefix(c, canAssign)

	for minPrec <= rules[c.current.Type].prec {
		c.advance()
		rules[c.previous.Type].infix(c, canAssign)
	}

	if canAssign && c.match(token.Assign) {
		c.errorAtPrevious("invalid assignment target")
	}
}

func number(c *Compiler, _ bool) {
	c.emitConstant(c.parseNumber(c.previous.Lexeme))
}

func stringLiteral(c *Compiler, _ bool) {
	c.emitConstant(c.previous.Lexeme)
}

func literal(c *Compiler, _ bool) {
	switch c.previous.Type {
	case token.True:
		c.emitConstant(true)
	case token.False:
		c.emitConstant(false)
	default:
		c.emitConstant(nil)
	}
}

func grouping(c *Compiler, _ bool) {
	c.expression(PrecAssignment)
	c.consume(token.RParen, "')' after expression")
}

func unary(c *Compiler, _ bool) {
	op := c.previous.Type
	c.expression(PrecUnary)
	switch op {
	case token.Minus:
		c.emit(bytecode.OP_NEGATE)
	case token.Bang:
		c.emit(bytecode.OP_NOT)
	}
}

func binary(c *Compiler, _ bool) {
	op := c.previous.Type
	rule := rules[op]
	c.expression(rule.prec + 1)

	switch op {
	case token.Plus:
		c.emit(bytecode.OP_ADD)
	case token.Minus:
		c.emit(bytecode.OP_SUB)
	case token.Star:
		c.emit(bytecode.OP_MUL)
	case token.Slash:
		c.emit(bytecode.OP_DIV)
	case token.Less:
		c.emit(bytecode.OP_LT)
	case token.Greater:
		c.emit(bytecode.OP_GT)
	case token.LessEqual:
		c.emit(bytecode.OP_LTE)
	case token.GreaterEqual:
		c.emit(bytecode.OP_GTE)
	case token.Equal:
		c.emit(bytecode.OP_EQ)
	case token.NotEqual:
		c.emit(bytecode.OP_NEQ)
	}
}

// logicalAnd duplicates the left value and tests the copy: a falsy left
// short-circuits with itself as the result, a truthy left is popped and
// replaced by the right operand.
func logicalAnd(c *Compiler, _ bool) {
	c.emit(bytecode.OP_DUPE)
	end := c.emitJump(bytecode.OP_CJUMPF)
	c.emit(bytecode.OP_POP)
	c.expression(PrecAnd + 1)
	c.patchJump(end)
}

func logicalOr(c *Compiler, _ bool) {
	c.emit(bytecode.OP_DUPE)
	end := c.emitJump(bytecode.OP_CJUMPT)
	c.emit(bytecode.OP_POP)
	c.expression(PrecOr + 1)
	c.patchJump(end)
}

// variable resolves an identifier against the live locals first, falling
// back to a global reference. When parsed at assignment precedence a
// trailing '=' turns the reference into a store.
func variable(c *Compiler, canAssign bool) {
	name := c.previous.Lexeme

	if slot := c.resolveLocal(name); slot >= 0 {
		if canAssign && c.match(token.Assign) {
			c.expression(PrecAssignment)
			c.emit(bytecode.OP_LOCAL_SET, byte(slot))
		} else {
			c.emit(bytecode.OP_LOCAL_GET, byte(slot))
		}
		return
	}

	if !c.globals[name] {
		c.errorAtPrevious("undefined variable '%s'", name)
		return
	}
	nameIdx := c.makeConstant(name)
	if canAssign && c.match(token.Assign) {
		c.expression(PrecAssignment)
		c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_GLOBAL_SET)
	} else {
		c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_GLOBAL_GET)
	}
}

func call(c *Compiler, _ bool) {
	argc := 0
	for !c.check(token.RParen) && !c.check(token.EOF) {
		if argc > 0 {
			c.consume(token.Comma, "',' between arguments")
		}
		c.expression(PrecAssignment)
		if argc == MaxCallArgs {
			c.errorAtPrevious("too many call arguments")
		}
		argc++
	}
	c.consume(token.RParen, "')' after arguments")
	c.emit(bytecode.OP_CALL, byte(argc))
}

// dot compiles field access and field assignment. The field name travels as
// a string constant pushed just before the field opcode.
func dot(c *Compiler, canAssign bool) {
	c.consume(token.Ident, "field name after '.'")
	nameIdx := c.makeConstant(c.previous.Lexeme)

	if canAssign && c.match(token.Assign) {
		c.expression(PrecAssignment)
		c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_FIELD_SET)
		return
	}
	c.emit(bytecode.OP_CONSTANT, nameIdx, bytecode.OP_FIELD_GET)
}

// index compiles the ':' element access operator, list : position.
func index(c *Compiler, _ bool) {
	c.expression(PrecAssignment)
	c.emit(bytecode.OP_INDEX)
}

// list compiles a [a, b, c] literal: the elements in order, then their
// count, then the gather opcode.
func list(c *Compiler, _ bool) {
	count := 0
	for !c.check(token.RBracket) && !c.check(token.EOF) {
		if count > 0 {
			c.consume(token.Comma, "',' between list elements")
		}
		c.expression(PrecAssignment)
		count++
	}
	c.consume(token.RBracket, "']' after list elements")
	c.emitConstant(float64(count))
	c.emit(bytecode.OP_LIST)
}
