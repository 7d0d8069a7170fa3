package parser

import (
	"go/ast"
	"go/token"
)

// cyclomaticComplexity computes the standard branch-counting complexity for
// a function body: one plus a point per decision path.
func cyclomaticComplexity(funcDecl *ast.FuncDecl) float64 {
	if funcDecl.Body == nil {
		return 0
	}

	complexity := 1.0
	ast.Inspect(funcDecl.Body, func(node ast.Node) bool {
		switch n := node.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt:
			complexity++
		case *ast.CaseClause:
			// The default clause adds no branch
			if n.List != nil {
				complexity++
			}
		case *ast.CommClause:
			if n.Comm != nil {
				complexity++
			}
		case *ast.BinaryExpr:
			if n.Op == token.LAND || n.Op == token.LOR {
				complexity++
			}
		}
		return true
	})
	return complexity
}

// spawnsGoroutine reports whether the function body launches a goroutine
func spawnsGoroutine(funcDecl *ast.FuncDecl) bool {
	if funcDecl.Body == nil {
		return false
	}

	found := false
	ast.Inspect(funcDecl.Body, func(node ast.Node) bool {
		if _, ok := node.(*ast.GoStmt); ok {
			found = true
			return false
		}
		return !found
	})
	return found
}
