package expr

// The AST is deliberately small: identifiers, literals, field selection,
// method calls, unary not, short-circuit logical and comparison operators,
// array literals, and single-parameter lambdas (arguments to some()).
// Nothing in it can reach outside the row it is evaluated against.

type node interface{ nodeKind() string }

type litNode struct {
	val value
}

type identNode struct {
	name string
}

type selectorNode struct {
	recv node
	name string
}

type callNode struct {
	recv   node
	method string
	args   []node
}

type lambdaNode struct {
	param string
	body  node
}

type unaryNode struct {
	op string // "!"
	x  node
}

type binaryNode struct {
	op  string // || && == != < <= > >=
	lhs node
	rhs node
}

type arrayNode struct {
	elems []node
}

func (litNode) nodeKind() string      { return "lit" }
func (identNode) nodeKind() string    { return "ident" }
func (selectorNode) nodeKind() string { return "selector" }
func (callNode) nodeKind() string     { return "call" }
func (lambdaNode) nodeKind() string   { return "lambda" }
func (unaryNode) nodeKind() string    { return "unary" }
func (binaryNode) nodeKind() string   { return "binary" }
func (arrayNode) nodeKind() string    { return "array" }
