package asm

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// source is a KLT source file.
type source struct {
	Statements []*statement `@@*`
}

// statement is a label, a directive, or an instruction.
type statement struct {
	Pos lexer.Position

	Label     *string    `  @Label`
	Directive *directive `| @@`
	Op        *operation `| @@`
}

type directive struct {
	Entry    *string `  ".entry" @Ident`
	Stack    *value  `| ".stack" @@`
	Equate   *equate `| ".equ" @@`
	Compress bool    `| @".compress"`
}

type equate struct {
	Name  string `@Ident`
	Value *value `@@`
}

type value struct {
	Number *string `  @Number`
	Expr   *string `| @Expr`
	Name   *string `| @Ident`
}

// operation is one instruction mnemonic and its operands.
type operation struct {
	Nop  bool    `  @"nop"`
	Jmpl *string `| "jmpl" @Ident`
}

var kltLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "Expr", Pattern: `\$\((?:[^()\n]|\([^()\n]*\))*\)`},
	{Name: "Label", Pattern: `[A-Za-z_][A-Za-z0-9_.]*:`},
	{Name: "Directive", Pattern: `\.[a-z]+`},
	{Name: "Number", Pattern: `-?(?:0[xX][0-9a-fA-F_]+|0[bB][01_]+|[0-9][0-9_]*)`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.]*`},
})

var parser = participle.MustBuild[source](
	participle.Lexer(kltLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)
