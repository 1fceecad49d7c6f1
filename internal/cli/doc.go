// Package cli parses and validates command-line arguments and owns
// process-level concerns such as exit codes. Flags are translated into an
// app.Config; nothing else in the program touches os.Args.
package cli
