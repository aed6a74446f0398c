// Package all wires every built-in storage backend into the storage factory.
// Import it for side effects:
//
//	import _ "kontrol/internal/storage/all"
//
// after which storage.New understands the kinds "xlsx", "csv", "sqlite" and
// "postgres".
package all

import (
	_ "kontrol/internal/storage/csv"
	_ "kontrol/internal/storage/postgres"
	_ "kontrol/internal/storage/sqlite"
	_ "kontrol/internal/storage/xlsx"
)
