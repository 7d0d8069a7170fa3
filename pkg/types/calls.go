package types

// CallType describes how a call site invokes its callee
type CallType string

const (
	CallDirect   CallType = "direct"   // plain identifier call: foo()
	CallMethod   CallType = "method"   // selector call: recv.Foo()
	CallIndirect CallType = "indirect" // deferred or goroutine launch
)

// CallReference is a call site observed while parsing a single file.
// The callee may or may not be defined in the same file; resolution
// against the project-wide symbol table happens later.
type CallReference struct {
	CallerName   string // enclosing function or method name
	CalleeName   string // bare callee identifier
	CalleeTarget string // receiver or package qualifier, empty for direct calls
	CallType     CallType
	Line         int
}
