package appfs

import "embed"

// FS holds the database migrations, the email templates and the common passwords list.
//
//go:embed migrations all:templates common-passwords.txt
var FS embed.FS
