// Package all wires every built-in storage backend into the storage factory.
//
// It exists purely for side effects: blank-importing it runs the init
// functions of each concrete backend, which register their factories with the
// storage package. Importing this package makes the following storage kinds
// available at runtime:
//
//   - "mysql"    (internal/storage/mysql)
//   - "postgres" (internal/storage/postgres)
//   - "sqlite"   (internal/storage/sqlite)
//   - "mssql"    (internal/storage/mssql)
//
// A binary that should support only a subset of backends can blank-import the
// required backend packages directly instead of this one.
package all

import (
	_ "github.com/spken/ict-skills-2025/internal/storage/mssql"
	_ "github.com/spken/ict-skills-2025/internal/storage/mysql"
	_ "github.com/spken/ict-skills-2025/internal/storage/postgres"
	_ "github.com/spken/ict-skills-2025/internal/storage/sqlite"
)
