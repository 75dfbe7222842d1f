// Package expr defines the immutable expression and type model shared by the
// front end, the SSA construction engine and the decision procedures.
//
// Every expression kind is a small value type implementing Expr. Nodes are
// never mutated after construction; rewriting produces new trees. Traversals
// (Walk, Transform, TransformPost) keep an explicit stack so that deep input
// expressions cannot exhaust the goroutine stack.
//
// Integer expressions have no fixed width here. The width is a property of the
// decision procedure (and of the concrete evaluator used by the simplifier),
// which interpret integers as two's complement machine words.
package expr
