// Package fingerprint computes stable digests of work-unit source logic.
//
// A fingerprint is insensitive to formatting, comments, and leading
// documentation strings: only structural changes to executable logic move it.
// Two units with the same fingerprint are treated as logically equivalent for
// staleness purposes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
)

// Sentinel is returned when a unit cannot be located or parsed. A sentinel
// fingerprint never matches a stored one, so broken units surface as stale
// instead of halting the rest of the corpus.
const Sentinel = "error"

// prefixLen truncates digests for readability in reports. At 12 hex chars the
// collision probability is negligible for any realistic number of distinct
// unit definitions.
const prefixLen = 12

// Function fingerprints a named top-level function in a Go source file.
//
// The file is parsed without comments, the function's doc comment and any
// leading string-literal expression statement in its body are dropped, and the
// remaining syntax tree is serialized with a position-free structural dump
// before hashing. Failures of any kind yield Sentinel.
func Function(path, name string) string {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return Sentinel
	}

	var fn *ast.FuncDecl
	for _, decl := range file.Decls {
		d, ok := decl.(*ast.FuncDecl)
		if !ok || d.Recv != nil {
			continue
		}
		if d.Name.Name == name {
			fn = d
			break
		}
	}
	if fn == nil {
		return Sentinel
	}

	fn.Doc = nil
	stripLeadingDocLiteral(fn)

	return truncate(sha256.Sum256(dumpNode(fn)))
}

// File fingerprints raw file content. Used for units whose logic is not Go
// source (notebook templates). Returns "" when the file does not exist.
func File(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return truncate(sha256.Sum256(data))
}

// stripLeadingDocLiteral removes a bare string literal appearing as the first
// statement of the function body. Such literals carry documentation, not
// logic, and must not invalidate already-produced data.
func stripLeadingDocLiteral(fn *ast.FuncDecl) {
	if fn.Body == nil || len(fn.Body.List) == 0 {
		return
	}
	expr, ok := fn.Body.List[0].(*ast.ExprStmt)
	if !ok {
		return
	}
	lit, ok := expr.X.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return
	}
	fn.Body.List = fn.Body.List[1:]
}

func truncate(sum [sha256.Size]byte) string {
	return hex.EncodeToString(sum[:])[:prefixLen]
}
