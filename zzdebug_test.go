package svsim

import (
	"fmt"
	"testing"

	"svsim/internal/lex"
)

func TestZZDebugTokens(t *testing.T) {
	src := "module nand_gate(input inA, input inB, output outY);\n"
	lx := NewLexer(src, "t.sv")
	for {
		it := lx.Next()
		fmt.Printf("%+v\n", it)
		if it.Type == lex.EOF {
			break
		}
	}
}
