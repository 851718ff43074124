// README: SQL schema files, embedded so the binary and tests can apply them.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
