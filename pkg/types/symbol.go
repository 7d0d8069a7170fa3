package types

import (
	"errors"
	"go/token"
)

// SymbolKind represents the kind of language construct a symbol describes
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
	KindField     SymbolKind = "field"
)

// SymbolScope represents the visibility scope of a symbol
type SymbolScope string

const (
	ScopeExported   SymbolScope = "exported"
	ScopeUnexported SymbolScope = "unexported"
)

// Position represents a location in source code
type Position struct {
	Line   int
	Column int
}

// Symbol represents a named code unit extracted from a source file.
//
// Within one file a symbol is identified by (Name, Start.Line); the storage
// layer enforces that key so re-indexing the same span replaces rather than
// duplicates.
type Symbol struct {
	// Identification
	ID            int64
	Name          string
	QualifiedName string // package.Name, or package.Receiver.Name for methods
	Kind          SymbolKind
	Package       string
	Language      string

	// Content
	Signature  string // Function signature or type definition
	DocComment string

	// Scope
	Scope    SymbolScope
	Receiver string // For methods: receiver type name (the parent symbol)

	// Location
	Start Position
	End   Position

	// Analysis
	IsTest     bool    // Declared in a test file with a Test/Benchmark/Fuzz name
	IsAsync    bool    // Body launches goroutines
	Complexity float64 // Cyclomatic approximation, branch count based
}

// ValidateKind checks if the symbol kind is valid
func (s *Symbol) ValidateKind() error {
	switch s.Kind {
	case KindFunction, KindMethod, KindStruct, KindInterface, KindType, KindConst, KindVar, KindField:
		return nil
	default:
		return errors.New("invalid symbol kind")
	}
}

// ValidateScope checks if the symbol scope is valid
func (s *Symbol) ValidateScope() error {
	switch s.Scope {
	case ScopeExported, ScopeUnexported:
		return nil
	default:
		return errors.New("invalid symbol scope")
	}
}

// IsExported returns true if the symbol is visible outside its package
func (s *Symbol) IsExported() bool {
	return s.Scope == ScopeExported && token.IsExported(s.Name)
}

// IsCallable reports whether the symbol can appear as a call graph endpoint
func (s *Symbol) IsCallable() bool {
	return s.Kind == KindFunction || s.Kind == KindMethod
}

// Validate performs comprehensive validation of the symbol
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return errors.New("symbol name is required")
	}

	if err := s.ValidateKind(); err != nil {
		return err
	}

	if err := s.ValidateScope(); err != nil {
		return err
	}

	if s.Package == "" {
		return errors.New("package name is required")
	}

	// Methods must have a receiver
	if s.Kind == KindMethod && s.Receiver == "" {
		return errors.New("methods must have a receiver type")
	}

	// Position validation
	if s.Start.Line <= 0 || s.End.Line <= 0 {
		return errors.New("invalid position: line numbers must be positive")
	}

	if s.Start.Line > s.End.Line {
		return errors.New("invalid position: start line must be before or equal to end line")
	}

	return nil
}
