// Package errors provides structured, coded error messages for devgate.
//
// Every failure the gateway can report has a registered code that maps
// to a category and a short message:
//
//   - E12x: configuration (devgate.json, entry, port range)
//   - E14x: CLI (missing entry file, output writes)
//   - E20x: server (port exhausted, listener stopped)
//   - E21x: build (compiler errors, bundler setup)
//   - E22x/E23x: artifacts (not found, compression)
//
// Errors compare by code, so sentinel values work with errors.Is:
//
//	var ErrExhausted = errors.New("E200")
//
//	if stderrors.Is(err, ErrExhausted) { ... }
//
// # Usage
//
//	err := errors.New("E210").
//	    WithMessage("Could not resolve %q", "./missing").
//	    WithLocation("src/index.js", 3, 8)
//
//	fmt.Println(err.Format())   // colored, for the CLI
//	fmt.Println(errors.Text(err)) // message + trace, for the dashboard
package errors
