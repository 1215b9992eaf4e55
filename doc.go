// Package formula compiles mathematical expressions from text into a tree
// that can be evaluated many times against variables owned by the calling
// program.
//
// Typical use is as follows:
//
//  1. Create a SymbolTable and bind variables, constants, strings, vectors
//     and functions to it
//  2. Compile an expression against the table, with Compile or a Parser
//  3. Change the bound values and call Expression.Value as often as needed
//
// Symbol Tables
//
// A SymbolTable maps case-insensitive names to storage. Names are unique
// across all kinds: a name bound as a variable cannot also be a string, a
// vector or a function. Variables added with AddVariable and strings added
// with AddStringVar are owned by the caller, who may change them at any time;
// expressions read the current value on every evaluation. CreateVariable and
// CreateStringVar allocate storage inside the table instead.
//
// Functions of one to ten arguments are registered with AddFunction or the
// AddFunc1..AddFunc4 helpers. Registration returns a FunctionHandle that
// reports whether the registration is still live.
//
// The Language
//
// Expressions use the usual operators with the usual precedence, ^ for
// exponentiation (right associative), := and the compound assignments for
// assignment, and the words and, or, xor, nand, nor, xnor and not for logic.
// A number directly followed by a name or a parenthesis multiplies: 2x^2 is
// 2*(x^2). Statements are separated by ';' and the value of an expression is
// the value of its last statement.
//
//	var total := 0;
//	for (var i := 0; i < v[]; i += 1) {
//	    total += v[i] * w[i]
//	};
//	total / v[]
//
// Control flow covers if/else, the ternary operator, while, for,
// repeat/until and switch. Strings support concatenation, comparison,
// substrings (s[i:j], inclusive), length (s[]) and the in, like and ilike
// operators. Vectors support element access, length, element-wise
// arithmetic with scalar broadcast, and the aggregate functions sum, avg,
// mul, min and max.
//
// A string result is reported by Value as its length and a vector result as
// its first element.
//
// Unknown Symbols
//
// By default a name that is neither in the table nor declared by the
// expression is a compile error. A Resolver passed with WithResolver is
// consulted instead, and may bind the symbol, accept it as a placeholder
// for this compile only, or reject it with a message. CompileVars is a
// shortcut that adds every unknown name as a zero variable.
//
// Errors
//
// A failed compile returns a *CompileError holding one ParseError per
// diagnostic, each with the line and column of the offending token.
// ParseError.Snippet and CompileError.Report render them for terminals.
//
// Concurrency
//
// Neither SymbolTable nor Expression is safe for concurrent use. Programs
// that share a table between goroutines should route changes and
// evaluations through a Locker. A Vault holds named formulas and publishes
// batches of changes atomically to lock-free readers.
package formula
