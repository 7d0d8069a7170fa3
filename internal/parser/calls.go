package parser

import (
	"go/ast"
	"go/token"

	"github.com/symdex/symdex-mcp/pkg/types"
)

// skippedCallees are builtins and ubiquitous interface methods that would
// flood the call graph with noise if recorded.
var skippedCallees = map[string]bool{
	"len":     true,
	"cap":     true,
	"make":    true,
	"new":     true,
	"append":  true,
	"copy":    true,
	"delete":  true,
	"panic":   true,
	"recover": true,
	"print":   true,
	"println": true,
	"Error":   true,
	"String":  true,
}

// extractCalls walks every function body and records the calls it makes.
// References are positional only; matching callee names to symbols happens
// later against the project-wide symbol table.
func extractCalls(fset *token.FileSet, file *ast.File) []types.CallReference {
	var calls []types.CallReference
	for _, decl := range file.Decls {
		funcDecl, ok := decl.(*ast.FuncDecl)
		if !ok || funcDecl.Body == nil {
			continue
		}

		callerName := funcDecl.Name.Name
		if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
			if recv := receiverTypeName(funcDecl.Recv.List[0].Type); recv != "" {
				callerName = recv + "." + funcDecl.Name.Name
			}
		}

		collector := &callCollector{fset: fset, caller: callerName}
		ast.Inspect(funcDecl.Body, collector.visit)
		calls = append(calls, collector.calls...)
	}
	return calls
}

// callCollector gathers call expressions within one function body
type callCollector struct {
	fset   *token.FileSet
	caller string
	calls  []types.CallReference
}

func (c *callCollector) visit(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.GoStmt:
		// Goroutine launches lose direct control flow, mark them indirect
		c.record(n.Call, types.CallIndirect)
		for _, arg := range n.Call.Args {
			ast.Inspect(arg, c.visit)
		}
		return false
	case *ast.DeferStmt:
		c.record(n.Call, types.CallIndirect)
		for _, arg := range n.Call.Args {
			ast.Inspect(arg, c.visit)
		}
		return false
	case *ast.CallExpr:
		c.record(n, "")
	}
	return true
}

// record classifies and stores a single call expression. forcedType
// overrides the inferred call type for go and defer statements.
func (c *callCollector) record(call *ast.CallExpr, forcedType types.CallType) {
	var name, target string
	var callType types.CallType

	switch fn := call.Fun.(type) {
	case *ast.Ident:
		name = fn.Name
		callType = types.CallDirect
	case *ast.SelectorExpr:
		name = fn.Sel.Name
		target = selectorBase(fn.X)
		callType = types.CallMethod
	default:
		// Calls through function values or type conversions carry no
		// resolvable name
		return
	}

	if skippedCallees[name] {
		return
	}
	if forcedType != "" {
		callType = forcedType
	}

	c.calls = append(c.calls, types.CallReference{
		CallerName:   c.caller,
		CalleeName:   name,
		CalleeTarget: target,
		CallType:     callType,
		Line:         c.fset.Position(call.Pos()).Line,
	})
}

// selectorBase extracts the leftmost identifier of a selector chain
func selectorBase(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return selectorBase(t.X)
	case *ast.CallExpr:
		return ""
	case *ast.StarExpr:
		return selectorBase(t.X)
	}
	return ""
}

// receiverTypeName extracts the receiver type name for qualified caller names
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
	case *ast.Ident:
		return t.Name
	}
	return ""
}
